package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// validPhone matches Kenyan mobile numbers as dialled locally (07.. or 01..).
var validPhone = regexp.MustCompile(`^(?:07|01)\d{8}$`)

// envelope is the response body shape shared by every endpoint:
// {"success": bool, "message"?: string, ...payload}.
type envelope map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{"success": false, "message": msg})
}

// writeSuccess merges the payload into the success envelope.
func writeSuccess(w http.ResponseWriter, status int, msg string, payload envelope) {
	env := envelope{"success": true}
	if msg != "" {
		env["message"] = msg
	}
	for k, v := range payload {
		env[k] = v
	}
	writeJSON(w, status, env)
}

// defaultPageSize is the fixed page size for list endpoints.
const defaultPageSize = 10

// parsePage reads the page query parameter, defaulting to 1 for anything
// missing or malformed.
func parsePage(r *http.Request) int {
	page := 1
	if s := r.URL.Query().Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}
	return page
}

type paginationMeta struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

func buildPagination(page int, total int64) paginationMeta {
	totalPages := int((total + defaultPageSize - 1) / defaultPageSize)
	return paginationMeta{
		CurrentPage: page,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1 && total > 0,
	}
}

// numericToInt64 converts an aggregate result (SUM over bigint comes back as
// numeric) into whole currency units.
func numericToInt64(n pgtype.Numeric) int64 {
	if !n.Valid {
		return 0
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return 0
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return 0
	}
	return d.IntPart()
}

// normalizeName collapses whitespace and title-cases each word, so
// " jane  WANJIKU " is stored as "Jane Wanjiku".
func normalizeName(name string) string {
	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
