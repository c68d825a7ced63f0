package flow

import (
	"context"
	"testing"

	"github.com/arcosum/arcobot/internal/models"
)

func TestQuantityShapes(t *testing.T) {
	v := NewValidator(nil)
	tests := []struct {
		input string
		want  bool
	}{
		{"500 kg", true},
		{"2 toneladas", true},
		{"1.5 ton", true},
		{"3x30", true},
		{"20 x 30", true},
		{"hola buenas tardes", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, ok := v.Quantity(context.Background(), tt.input); ok != tt.want {
			t.Errorf("Quantity(%q) = %v, want %v", tt.input, ok, tt.want)
		}
	}
}

func TestGaugeNormalization(t *testing.T) {
	v := NewValidator(nil)
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"cal 20", "cal_20", true},
		{"calibre 18", "cal_18", true},
		{"22", "cal_22", true},
		{"99", "", false},
		{"no sé", "", false},
	}
	for _, tt := range tests {
		got, ok := v.Gauge(context.Background(), tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Gauge(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConfirmIntentMatchesWholeWordsOnly(t *testing.T) {
	v := NewValidator(nil)
	tests := []struct {
		input string
		want  string
	}{
		{"sí", "confirma"},
		{"Si, enviar", "confirma"},
		{"ok perfecto", "confirma"},
		{"no", "cancela"},
		{"No, cancelar", "cancela"},
		// "si" buried inside another word must not confirm.
		{"necesito una visita", "invalido"},
		{"tal vez", "invalido"},
	}
	for _, tt := range tests {
		if got := v.ConfirmIntent(context.Background(), tt.input); got != tt.want {
			t.Errorf("ConfirmIntent(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFullName(t *testing.T) {
	v := NewValidator(nil)
	if _, ok := v.FullName("Juan Pérez"); !ok {
		t.Error("two-word name rejected")
	}
	if _, ok := v.FullName("Juan"); ok {
		t.Error("single word accepted")
	}
	if _, ok := v.FullName("Juan P3rez"); ok {
		t.Error("digits accepted")
	}
}

func TestMenuChoice(t *testing.T) {
	v := NewValidator(nil)
	if got, ok := v.MenuChoice(" 3 ", 4); !ok || got != 3 {
		t.Errorf("MenuChoice(3) = (%d, %v)", got, ok)
	}
	if _, ok := v.MenuChoice("5", 4); ok {
		t.Error("out-of-range digit accepted")
	}
	if _, ok := v.MenuChoice("dos", 4); ok {
		t.Error("word accepted")
	}
}

func TestDetectDivisionChangeSkipsCurrent(t *testing.T) {
	tests := []struct {
		message string
		current string
		want    string
	}{
		{"quiero un arcotecho", "suministros", "techos"},
		{"necesito lámina", "rolados", ""},
		{"necesito lámina", "techos", "rolados"},
		{"mejor otra cosa", "techos", "otros"},
		{"hola", "techos", ""},
	}
	for _, tt := range tests {
		got := DetectDivisionChange(tt.message, models.Division(tt.current))
		if string(got) != tt.want {
			t.Errorf("DetectDivisionChange(%q, %q) = %q, want %q", tt.message, tt.current, got, tt.want)
		}
	}
}
