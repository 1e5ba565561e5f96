package server

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Infifrontend/Offersenseb2b-sub000/internal/model"
)

// CSV upload conventions: the first row is a header whose column names match
// the entity's JSON field names, list-valued columns are pipe-separated, and
// dates are YYYY-MM-DD. Rows that fail validation are skipped and reported in
// the response; the remaining rows are inserted in one transaction.

const csvListSep = "|"

// rowError locates a validation failure inside an uploaded file.
type rowError struct {
	Row     int    `json:"row"` // 1-based, excluding the header
	Field   string `json:"field"`
	Message string `json:"message"`
}

type uploadResult struct {
	Inserted  any        `json:"inserted"`
	Conflicts any        `json:"conflicts"`
	Errors    []rowError `json:"errors"`
}

// csvRows reads the uploaded file and returns the header-index map plus the
// data rows. Ragged rows are rejected by the csv reader itself.
func (h *Handlers) csvRows(w http.ResponseWriter, r *http.Request) (map[string]int, [][]string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
			`multipart upload must carry a "file" part`)
		return nil, nil, false
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "file is empty or not valid CSV")
		return nil, nil, false
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
				fmt.Sprintf("malformed CSV: %v", err))
			return nil, nil, false
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "file has no data rows")
		return nil, nil, false
	}
	return columns, rows, true
}

// cell returns the named column of a row, or "" when the column is absent.
func cell(columns map[string]int, row []string, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellList(columns map[string]int, row []string, name string) []string {
	raw := cell(columns, row, name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, csvListSep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cellFloat(columns map[string]int, row []string, name string, errs *[]rowError, rowNum int) float64 {
	raw := cell(columns, row, name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, rowError{Row: rowNum, Field: name, Message: "must be a number"})
	}
	return v
}

func cellInt(columns map[string]int, row []string, name string, errs *[]rowError, rowNum int) int {
	raw := cell(columns, row, name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, rowError{Row: rowNum, Field: name, Message: "must be an integer"})
	}
	return v
}

func cellDate(columns map[string]int, row []string, name string, errs *[]rowError, rowNum int) time.Time {
	raw := cell(columns, row, name)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		*errs = append(*errs, rowError{Row: rowNum, Field: name, Message: "must be a YYYY-MM-DD date"})
	}
	return t
}

// HandleUploadFares bulk-loads negotiated fares from a CSV file.
func (h *Handlers) HandleUploadFares(w http.ResponseWriter, r *http.Request) {
	columns, rows, ok := h.csvRows(w, r)
	if !ok {
		return
	}

	rowErrs := []rowError{}
	fares := make([]model.NegotiatedFare, 0, len(rows))
	for n, row := range rows {
		rowNum := n + 1
		var errs []rowError
		fare := model.NegotiatedFare{
			Airline:         cell(columns, row, "airline"),
			FareCode:        cell(columns, row, "fareCode"),
			Origin:          cell(columns, row, "origin"),
			Destination:     cell(columns, row, "destination"),
			TripType:        model.TripType(cell(columns, row, "tripType")),
			CabinClass:      cell(columns, row, "cabinClass"),
			BaseNetFare:     cellFloat(columns, row, "baseNetFare", &errs, rowNum),
			Currency:        cell(columns, row, "currency"),
			BookingStart:    cellDate(columns, row, "bookingStartDate", &errs, rowNum),
			BookingEnd:      cellDate(columns, row, "bookingEndDate", &errs, rowNum),
			TravelStart:     cellDate(columns, row, "travelStartDate", &errs, rowNum),
			TravelEnd:       cellDate(columns, row, "travelEndDate", &errs, rowNum),
			POS:             cellList(columns, row, "pos"),
			SeatAllotment:   cellInt(columns, row, "seatAllotment", &errs, rowNum),
			BlackoutDates:   cellList(columns, row, "blackoutDates"),
			EligibleCohorts: cellList(columns, row, "eligibleCohorts"),
			Status:          model.Status(cell(columns, row, "status")),
		}
		for _, tier := range cellList(columns, row, "eligibleAgentTiers") {
			fare.EligibleTiers = append(fare.EligibleTiers, model.TierCode(tier))
		}
		if fare.Status == "" {
			fare.Status = model.StatusActive
		}
		for _, fe := range fare.Validate() {
			errs = append(errs, rowError{Row: rowNum, Field: fe.Field, Message: fe.Message})
		}
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}
		fares = append(fares, fare)
	}

	inserted, conflicts, err := h.db.BulkInsertFaresWithAudit(r.Context(), fares,
		auditEntry(r, model.ModuleNegotiatedFare, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "fare")
		return
	}
	writeJSON(w, r, http.StatusOK, uploadResult{
		Inserted:  inserted,
		Conflicts: conflicts,
		Errors:    rowErrs,
	})
}

// HandleUploadNonAirRates bulk-loads non-air rates from a CSV file.
func (h *Handlers) HandleUploadNonAirRates(w http.ResponseWriter, r *http.Request) {
	columns, rows, ok := h.csvRows(w, r)
	if !ok {
		return
	}

	rowErrs := []rowError{}
	rates := make([]model.NonAirRate, 0, len(rows))
	for n, row := range rows {
		rowNum := n + 1
		var errs []rowError
		rate := model.NonAirRate{
			ProductCode: cell(columns, row, "productCode"),
			ProductName: cell(columns, row, "productName"),
			Category:    cell(columns, row, "category"),
			BaseRate:    cellFloat(columns, row, "baseRate", &errs, rowNum),
			Currency:    cell(columns, row, "currency"),
			Supplier:    cell(columns, row, "supplier"),
			POS:         cellList(columns, row, "pos"),
			ValidFrom:   cellDate(columns, row, "validFrom", &errs, rowNum),
			ValidTo:     cellDate(columns, row, "validTo", &errs, rowNum),
			Status:      model.Status(cell(columns, row, "status")),
		}
		if rate.Status == "" {
			rate.Status = model.StatusActive
		}
		for _, fe := range rate.Validate() {
			errs = append(errs, rowError{Row: rowNum, Field: fe.Field, Message: fe.Message})
		}
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}
		rates = append(rates, rate)
	}

	inserted, duplicates, err := h.db.BulkInsertNonAirRatesWithAudit(r.Context(), rates,
		auditEntry(r, model.ModuleNonAirRate, model.ActionCreated))
	if err != nil {
		h.storageError(w, r, err, "rate")
		return
	}
	writeJSON(w, r, http.StatusOK, uploadResult{
		Inserted:  inserted,
		Conflicts: duplicates,
		Errors:    rowErrs,
	})
}
