package redirect

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// IDParam is the query parameter preferred over positional extraction.
const IDParam = "id"

// errNoParams reports a query string without any parameter.
var errNoParams = errors.New("no query parameters")

// ErrInvalidID reports an identifier that is not a base-10 32-bit integer.
var ErrInvalidID = errors.New("invalid id: not a number")

// rawIDValue selects the identifier text from a raw query string.
//
// Parameters are considered in the order they appear in the raw query.
// A parameter named "id" wins; otherwise the first parameter is used. A
// bare token without "=" is its own value, so "?5" selects "5" and "?abc"
// selects "abc". An empty selection defaults to "0".
func rawIDValue(rawQuery string) (string, error) {
	var first *string

	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}

		name, value, hasValue := strings.Cut(part, "=")
		name, err := url.QueryUnescape(name)
		if err != nil {
			return "", ErrInvalidID
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			return "", ErrInvalidID
		}

		if !hasValue {
			value = name
		}
		if name == IDParam && hasValue {
			return defaultZero(value), nil
		}
		if first == nil {
			v := value
			first = &v
		}
	}

	if first == nil {
		return "", errNoParams
	}
	return defaultZero(*first), nil
}

func defaultZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

// parseID converts identifier text to an int64 within the 32-bit signed range.
// Zero and negative values are accepted.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, ErrInvalidID
	}
	return id, nil
}
