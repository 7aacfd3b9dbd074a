package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Period
		wantErr bool
	}{
		{"valid", "2025-03", Period{Year: 2025, Month: 3}, false},
		{"december", "2024-12", Period{Year: 2024, Month: 12}, false},
		{"missing month", "2025", Period{}, true},
		{"bad month", "2025-13", Period{}, true},
		{"out of range year", "1999-01", Period{}, true},
		{"garbage", "march", Period{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriod(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("ParsePeriod(%q) error = %v, want ErrInvalidInput", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeriod(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePeriod(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPeriodString(t *testing.T) {
	p := Period{Year: 2025, Month: 3}
	if p.String() != "2025-03" {
		t.Errorf("String() = %s, want 2025-03", p.String())
	}
}

func TestPeriodBoundaries(t *testing.T) {
	p := Period{Year: 2024, Month: 2}

	if !p.Start().Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v", p.Start())
	}
	if !p.End().Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("End() = %v", p.End())
	}
	if !p.Contains(time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)) {
		t.Error("expected leap day to be inside period")
	}
	if p.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected End() to be excluded")
	}
}

func TestPeriodPreviousNext(t *testing.T) {
	jan := Period{Year: 2025, Month: 1}
	if prev := jan.Previous(); prev != (Period{Year: 2024, Month: 12}) {
		t.Errorf("Previous() = %v", prev)
	}
	dec := Period{Year: 2024, Month: 12}
	if next := dec.Next(); next != jan {
		t.Errorf("Next() = %v", next)
	}
}

func TestPeriodDayIn(t *testing.T) {
	feb := Period{Year: 2025, Month: 2}
	if d := feb.DayIn(31); d.Day() != 28 {
		t.Errorf("DayIn(31) in Feb 2025 = %d, want 28", d.Day())
	}
	if d := feb.DayIn(10); d.Day() != 10 {
		t.Errorf("DayIn(10) = %d, want 10", d.Day())
	}
}
