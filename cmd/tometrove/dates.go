package main

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/tometrove/tometrove/internal/catalog"
	"github.com/tometrove/tometrove/internal/errors"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDateInput accepts the catalog's date forms and natural phrases such
// as "yesterday" or "last friday", relative to now. The result is in a form
// the catalog accepts.
func parseDateInput(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.Validation("empty date")
	}
	if strings.EqualFold(s, "now") {
		return catalog.FormatDate(now), nil
	}
	if _, err := catalog.ParseDate(s); err == nil {
		return s, nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil || r == nil {
		return "", errors.Validationf("unrecognised date %q", s)
	}
	return catalog.FormatDate(r.Time), nil
}
