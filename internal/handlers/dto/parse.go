package dto

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissing    = errors.New("value is missing")
	ErrNotInteger = errors.New("value is not an integer")
)

// Int reads a JSON number or numeric string as an int.
func Int(v interface{}) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, ErrMissing
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt32 || x < math.MinInt32 {
			return 0, ErrNotInteger
		}
		return int(x), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, ErrNotInteger
		}
		return n, nil
	default:
		return 0, ErrNotInteger
	}
}

// ID is Int restricted to positive values.
func ID(v interface{}) (uint, error) {
	n, err := Int(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, ErrNotInteger
	}
	return uint(n), nil
}
