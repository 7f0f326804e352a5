package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/proof"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
	maxFileSize   = 10 << 20
)

var (
	errInvalidDate    = "invalid date, expected YYYY-MM-DD or RFC 3339"
	errInvalidNumber  = "invalid number"
	errFileTooLarge   = "each file must be at most 10MB"
	errUnreadableFile = "could not read file"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// parseDate reads a calendar day in loc or an RFC 3339 instant.
// A calendar day stands for its first instant, or its last one when endOfDay is set.
func parseDate(s string, loc *time.Location, endOfDay bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	day, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), true
	}
	return day, true
}

// formDate parses the form field name, reporting a field error on bad input.
func formDate(ctx echo.Context, name string, loc *time.Location, endOfDay bool) (time.Time, error) {
	t, ok := parseDate(ctx.FormValue(name), loc, endOfDay)
	if !ok {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: errInvalidDate})
	}
	return t, nil
}

func formInt(ctx echo.Context, name string) (int, error) {
	s := strings.TrimSpace(ctx.FormValue(name))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: errInvalidNumber})
	}
	return n, nil
}

// formValues returns every value of a repeated form field.
func formValues(ctx echo.Context, name string) []string {
	params, err := ctx.FormParams()
	if err != nil {
		return nil
	}
	var vals []string
	for _, v := range params[name] {
		if v = strings.TrimSpace(v); v != "" {
			vals = append(vals, v)
		}
	}
	return vals
}

// readUploads reads the files sent under field. A non multipart request carries no file.
func readUploads(ctx echo.Context, field string) ([]proof.Upload, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "parsing multipart form")
	}

	uploads := make([]proof.Upload, 0, len(form.File[field]))
	for _, fh := range form.File[field] {
		if fh.Size > maxFileSize {
			return nil, core.NewValidationError(nil, core.FieldError{Field: field, Error: errFileTooLarge})
		}
		data, err := readFile(fh)
		if err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: field, Error: errUnreadableFile})
		}
		uploads = append(uploads, proof.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(io.LimitReader(f, maxFileSize))
}
