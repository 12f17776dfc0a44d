// Package templates renders handlebars expressions inside test
// definitions: user-declared variables plus generator helpers for
// synthetic values.
package templates

import (
	"strconv"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

var registerOnce sync.Once

// RegisterHelpers installs the custom handlebars helpers. Safe to call
// multiple times; registration happens once per process.
func RegisterHelpers() {
	registerOnce.Do(func() {
		raymond.RegisterHelper("uuid", func() string {
			return uuid.New().String()
		})

		raymond.RegisterHelper("randomValue", func(options *raymond.Options) string {
			length := 10
			if v := options.HashProp("length"); v != nil {
				length = toInt(v, 10)
			}

			switch strings.ToUpper(options.HashStr("type")) {
			case "UUID":
				return uuid.New().String()
			case "NUMERIC":
				return gofakeit.DigitN(uint(length))
			default:
				return gofakeit.LetterN(uint(length))
			}
		})

		raymond.RegisterHelper("randomInt", func(options *raymond.Options) string {
			lower := 0
			upper := 100
			if v := options.HashProp("lower"); v != nil {
				lower = toInt(v, 0)
			}
			if v := options.HashProp("upper"); v != nil {
				upper = toInt(v, 100)
			}
			if lower > upper {
				lower, upper = upper, lower
			}
			return strconv.Itoa(gofakeit.Number(lower, upper))
		})

		raymond.RegisterHelper("fakeName", func() string {
			return gofakeit.Name()
		})
		raymond.RegisterHelper("fakeEmail", func() string {
			return gofakeit.Email()
		})
		raymond.RegisterHelper("fakePhone", func() string {
			return gofakeit.Phone()
		})
	})
}

// Render expands tpl against ctx. Invalid templates are returned
// unchanged so a literal '{{' in test content never breaks a run.
func Render(tpl string, ctx map[string]string) string {
	RegisterHelpers()

	parsed, err := raymond.Parse(tpl)
	if err != nil {
		return tpl
	}
	rendered, err := parsed.Exec(ctx)
	if err != nil {
		return tpl
	}
	return rendered
}

func toInt(v interface{}, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

