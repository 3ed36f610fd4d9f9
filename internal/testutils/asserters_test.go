package testutils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type captureT struct {
	errors []string
}

func (c *captureT) Helper() {}

func (c *captureT) Errorf(format string, args ...interface{}) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func TestTextAsserter(t *testing.T) {
	tests := []struct {
		name     string
		opts     []TextOption
		actual   string
		expected string
		pass     bool
	}{
		{name: "identical", actual: "a\nb", expected: "a\nb", pass: true},
		{name: "trailing whitespace ignored by default", actual: "a  \nb\t", expected: "a\nb", pass: true},
		{name: "surrounding newlines trimmed by default", actual: "\n\na\nb\n", expected: "a\nb", pass: true},
		{name: "different line", actual: "a\nc", expected: "a\nb", pass: false},
		{name: "empty lines significant by default", actual: "a\n\nb", expected: "a\nb", pass: false},
		{name: "empty lines ignored", opts: []TextOption{WithIgnoreEmptyLines(true)}, actual: "a\n\nb", expected: "a\nb", pass: true},
		{name: "no trim", opts: []TextOption{WithTrimSpace(false)}, actual: "\na", expected: "a", pass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := &captureT{}
			got := NewTextAsserter(ct, tt.opts...).Assert(tt.actual, tt.expected)
			assert.Equal(t, tt.pass, got)
			if tt.pass {
				assert.Empty(t, ct.errors)
			} else {
				assert.Len(t, ct.errors, 1, "mismatch MUST report exactly one error")
			}
		})
	}
}

func TestTextAsserterDiffShowsBothSides(t *testing.T) {
	d := NewTextAsserter(&captureT{}).Diff("one\nthree", "one\ntwo")
	assert.Contains(t, d, "-two")
	assert.Contains(t, d, "+three")
}

func TestJSONAsserter(t *testing.T) {
	tests := []struct {
		name     string
		opts     []JSONOption
		actual   string
		expected string
		pass     bool
	}{
		{name: "key order irrelevant", actual: `{"a":1,"b":2}`, expected: `{"b":2,"a":1}`, pass: true},
		{name: "value differs", actual: `{"a":1}`, expected: `{"a":2}`, pass: false},
		{name: "presence placeholder", actual: `{"a":1,"uuid":"x"}`, expected: `{"a":1,"uuid":"<<PRESENCE>>"}`, pass: true},
		{name: "missing placeholder key fails", actual: `{"a":1}`, expected: `{"a":1,"uuid":"<<PRESENCE>>"}`, pass: false},
		{name: "extra keys fail by default", actual: `{"a":1,"b":2}`, expected: `{"a":1}`, pass: false},
		{name: "extra keys ignored", opts: []JSONOption{WithIgnoreExtraKeys(true)}, actual: `{"a":1,"b":2}`, expected: `{"a":1}`, pass: true},
		{name: "ignored fields", opts: []JSONOption{WithIgnoredFields("ts")}, actual: `[{"a":1,"ts":5}]`, expected: `[{"a":1,"ts":9}]`, pass: true},
		{name: "root arrays", actual: `[1,2]`, expected: `[1,3]`, pass: false},
		{name: "invalid actual", actual: `{`, expected: `{}`, pass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := &captureT{}
			got := NewJSONAsserter(ct, tt.opts...).Assert(tt.actual, tt.expected)
			assert.Equal(t, tt.pass, got)
		})
	}
}
