package ast

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/walteh/rulesls/pkg/position"
)

type ValueKind int

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueBoolean
	ValueReference
	ValueSprite
	ValueSound
	ValueShader
)

var valueKindNames = [...]string{
	ValueString:    "String",
	ValueNumber:    "Number",
	ValueBoolean:   "Boolean",
	ValueReference: "Reference",
	ValueSprite:    "Sprite",
	ValueSound:     "Sound",
	ValueShader:    "Shader",
}

func (k ValueKind) String() string {
	if k < 0 || int(k) >= len(valueKindNames) {
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
	return valueKindNames[k]
}

// IsAsset reports whether the value names a file shipped next to the rules.
func (k ValueKind) IsAsset() bool {
	return k == ValueSprite || k == ValueSound || k == ValueShader
}

// SoundExtensions are the audio suffixes classified as ValueSound.
var SoundExtensions = []string{".wav", ".ogg", ".mp3", ".flac"}

var numberPattern = regexp.MustCompile(`^-?\d+\.?\d*d?$`)

// Value is a scalar: a number, a string, a boolean, a reference path or an
// asset path.
type Value struct {
	base
	ValueKind ValueKind
	// Text is the literal as written, without quotes. Concatenated strings
	// are joined.
	Text   string
	Number float64
	Bool   bool

	Quoted        bool
	Parenthesized bool
	// Delimiter is the list separator that followed the value, ',' or ';',
	// zero when none did.
	Delimiter rune
}

// NewValue classifies text and builds a value node.
func NewValue(text string, quoted bool, pos position.Span) *Value {
	v := &Value{base: base{Pos: pos}, Text: text, Quoted: quoted}
	v.ValueKind, v.Number = ClassifyValue(text)
	return v
}

func NewBoolean(b bool, pos position.Span) *Value {
	return &Value{base: base{Pos: pos}, ValueKind: ValueBoolean, Text: strconv.FormatBool(b), Bool: b}
}

func (*Value) Kind() Kind { return KindValue }

// IsReference is a shorthand for v.ValueKind == ValueReference.
func (v *Value) IsReference() bool { return v.ValueKind == ValueReference }

// ClassifyValue derives the kind of a literal from its text alone. The
// numeric payload is only meaningful for ValueNumber.
func ClassifyValue(text string) (ValueKind, float64) {
	if numberPattern.MatchString(text) {
		n, err := strconv.ParseFloat(strings.TrimSuffix(text, "d"), 64)
		if err == nil {
			return ValueNumber, n
		}
	}

	lower := strings.ToLower(text)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return ValueSprite, 0
	case hasAnySuffix(lower, SoundExtensions):
		return ValueSound, 0
	case strings.HasSuffix(lower, ".shader"):
		return ValueShader, 0
	}

	if HasReferencePrefix(text) {
		return ValueReference, 0
	}

	return ValueString, 0
}

// HasReferencePrefix reports whether text starts like a path: one of
// & ^ .. / ~, or < when a .rules file is named.
func HasReferencePrefix(text string) bool {
	for _, p := range []string{"&", "^", "..", "/", "~"} {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return strings.HasPrefix(text, "<") && strings.Contains(text, ".rules")
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
