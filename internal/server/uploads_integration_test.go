package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/storage"
	"github.com/Infifrontend/Offersenseb2b-sub000/internal/testutil"
)

var integrationDB *storage.DB

func TestMain(m *testing.M) {
	tc, err := testutil.StartPostgres()
	if err == nil {
		db, dberr := tc.NewTestDB(context.Background(), testutil.TestLogger())
		if dberr == nil {
			integrationDB = db
		}
		code := m.Run()
		if integrationDB != nil {
			integrationDB.Close()
		}
		tc.Terminate()
		os.Exit(code)
	}
	os.Exit(m.Run())
}

// integrationServer wires the route table against a real database.
func integrationServer(t *testing.T) http.Handler {
	t.Helper()
	if integrationDB == nil {
		t.Skip("Docker unavailable, skipping integration test")
	}
	handlers := NewHandlers(HandlersDeps{
		DB:             integrationDB,
		Logger:         discardLogger(),
		MaxUploadBytes: 1 << 20,
		Version:        "test",
	})
	srv := New(Config{
		Port:                8080,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
		AllowedOrigins:      []string{"*"},
		MaxRequestBodyBytes: 1 << 20,
	}, handlers, discardLogger())
	return srv.Handler()
}

func uploadCSV(t *testing.T, h http.Handler, path, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "upload.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type uploadResponse struct {
	Data struct {
		Inserted  []json.RawMessage `json:"inserted"`
		Conflicts []json.RawMessage `json:"conflicts"`
		Errors    []rowError        `json:"errors"`
	} `json:"data"`
}

func TestUploadFares_PartialSuccess(t *testing.T) {
	h := integrationServer(t)

	csv := "airline,fareCode,origin,destination,tripType,cabinClass,baseNetFare,currency,bookingStartDate,bookingEndDate,travelStartDate,travelEndDate,pos,seatAllotment\n" +
		"LH,NF-UPL-1,FRA,SIN,ROUND_TRIP,ECONOMY,4200,EUR,2026-01-01,2026-06-30,2026-01-01,2026-12-31,DE,40\n" +
		"LH,NF-UPL-2,FRA,SIN,ROUND_TRIP,ECONOMY,not-a-number,EUR,2026-01-01,2026-06-30,2026-01-01,2026-12-31,DE,40\n" +
		"LH,NF-UPL-3,FRA,BKK,ROUND_TRIP,ECONOMY,3900,EUR,2026-01-01,2026-06-30,2026-01-01,2026-12-31,DE,25\n"

	rec := uploadCSV(t, h, "/api/negofares/upload", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// The malformed row is reported, the other two rows are inserted.
	assert.Len(t, resp.Data.Inserted, 2)
	assert.Empty(t, resp.Data.Conflicts)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, 2, resp.Data.Errors[0].Row)
	assert.Equal(t, "baseNetFare", resp.Data.Errors[0].Field)

	// The valid rows really landed.
	fare, err := integrationDB.FindFareForRoute(context.Background(), "FRA", "BKK", "ECONOMY")
	require.NoError(t, err)
	assert.Equal(t, "NF-UPL-3", fare.FareCode)
}

func TestUploadFares_ConflictsAndErrorsTogether(t *testing.T) {
	h := integrationServer(t)

	// Second row overlaps the first row's scope and window, third row fails
	// validation. One insert, one conflict, one row error.
	csv := "airline,fareCode,origin,destination,tripType,cabinClass,baseNetFare,currency,bookingStartDate,bookingEndDate,travelStartDate,travelEndDate,pos,seatAllotment\n" +
		"SQ,NF-MIX-1,SIN,NRT,ROUND_TRIP,BUSINESS,9100,SGD,2026-02-01,2026-07-31,2026-02-01,2026-12-31,SG,12\n" +
		"SQ,NF-MIX-2,SIN,NRT,ROUND_TRIP,BUSINESS,8800,SGD,2026-03-01,2026-08-31,2026-03-01,2026-12-31,SG,12\n" +
		"SQ,NF-MIX-3,SIN,NRT,ROUND_TRIP,BUSINESS,8700,SGD,2026-02-01,2026-07-31,2026-12-31,2026-01-01,SG,12\n"

	rec := uploadCSV(t, h, "/api/negofares/upload", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Len(t, resp.Data.Inserted, 1)
	assert.NotEmpty(t, resp.Data.Conflicts)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, 3, resp.Data.Errors[0].Row)
}
