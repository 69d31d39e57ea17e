package dateutil

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	input := time.Date(2025, 1, 15, 14, 30, 45, 123456789, time.UTC)
	expected := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	result := StartOfDay(input)

	if !result.Equal(expected) {
		t.Errorf("StartOfDay(%v) = %v, want %v", input, result, expected)
	}
}

func TestEndOfDay(t *testing.T) {
	input := time.Date(2025, 1, 15, 14, 30, 45, 0, time.UTC)
	result := EndOfDay(input)

	if result.Year() != 2025 || result.Month() != 1 || result.Day() != 15 {
		t.Errorf("EndOfDay(%v) wrong date: %v", input, result)
	}

	if result.Hour() != 23 || result.Minute() != 59 || result.Second() != 59 {
		t.Errorf("EndOfDay(%v) wrong time: %v", input, result)
	}
}

func TestIsWeekday(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
		want  bool
	}{
		{"Monday is weekday", time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), true},
		{"Wednesday is weekday", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"Friday is weekday", time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC), true},
		{"Saturday is not weekday", time.Date(2025, 1, 18, 0, 0, 0, 0, time.UTC), false},
		{"Sunday is not weekday", time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsWeekday(tt.input)

			if result != tt.want {
				t.Errorf("IsWeekday(%v) = %v, want %v",
					tt.input.Format("2006-01-02 Mon"), result, tt.want)
			}
		})
	}
}

func TestIsWeekend(t *testing.T) {
	tests := []struct {
		name  string
		input time.Time
		want  bool
	}{
		{"Saturday is weekend", time.Date(2025, 1, 18, 0, 0, 0, 0, time.UTC), true},
		{"Sunday is weekend", time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC), true},
		{"Monday is not weekend", time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), false},
		{"Friday is not weekend", time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsWeekend(tt.input)

			if result != tt.want {
				t.Errorf("IsWeekend(%v) = %v, want %v",
					tt.input.Format("2006-01-02 Mon"), result, tt.want)
			}
		})
	}
}

func TestIsSameDay(t *testing.T) {
	tests := []struct {
		name  string
		date1 time.Time
		date2 time.Time
		want  bool
	}{
		{
			"Same date different time",
			time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 15, 20, 0, 0, 0, time.UTC),
			true,
		},
		{
			"Different date",
			time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 16, 10, 0, 0, 0, time.UTC),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsSameDay(tt.date1, tt.date2)

			if result != tt.want {
				t.Errorf("IsSameDay(%v, %v) = %v, want %v",
					tt.date1, tt.date2, result, tt.want)
			}
		})
	}
}

func TestBeforeDay(t *testing.T) {
	tests := []struct {
		name  string
		date1 time.Time
		date2 time.Time
		want  bool
	}{
		{"earlier day late clock", time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"same day", time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC), time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC), false},
		{"earlier month", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"later year", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BeforeDay(tt.date1, tt.date2); got != tt.want {
				t.Errorf("BeforeDay(%v, %v) = %v, want %v", tt.date1, tt.date2, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			"ISO format YYYY-MM-DD",
			"2025-01-15",
			time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			false,
		},
		{
			"Slash format YYYY/MM/DD",
			"2025/01/15",
			time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			false,
		},
		{
			"ISO with time",
			"2025-01-15T10:30:00",
			time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
			false,
		},
		{
			"Garbage",
			"fifteenth of January",
			time.Time{},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDate(tt.input)

			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDate(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}

			if !tt.wantErr && !result.Equal(tt.want) {
				t.Errorf("ParseDate(%v) = %v, want %v", tt.input, result, tt.want)
			}
		})
	}
}

func TestParseMonth(t *testing.T) {
	year, month, err := ParseMonth("2024-02")
	if err != nil {
		t.Fatalf("ParseMonth() error = %v", err)
	}
	if year != 2024 || month != time.February {
		t.Errorf("ParseMonth(2024-02) = (%d, %v), want (2024, February)", year, month)
	}

	if _, _, err := ParseMonth("2024-13"); err == nil {
		t.Error("ParseMonth(2024-13) expected error, got nil")
	}
}
