package models

import (
	"testing"
	"time"
)

func TestCandlesForDays(t *testing.T) {
	tests := []struct {
		interval string
		days     int
		want     int
	}{
		{"1h", 30, 792},
		{"1d", 10, 11},
		{"15m", 1, 105},
		{"7m", 5, 0},
		{"1h", 0, 0},
	}

	for _, tt := range tests {
		if got := CandlesForDays(tt.interval, tt.days); got != tt.want {
			t.Errorf("CandlesForDays(%q, %d) = %d, want %d", tt.interval, tt.days, got, tt.want)
		}
	}
}

func TestParseSignal(t *testing.T) {
	if s, ok := ParseSignal(" strong_buy "); !ok || s != SignalStrongBuy {
		t.Errorf("ParseSignal() = %q, %v", s, ok)
	}
	if _, ok := ParseSignal("moon"); ok {
		t.Error("ParseSignal(moon) should fail")
	}
	if got := SignalStrongSell.Lower(); got != "strong_sell" {
		t.Errorf("Lower() = %q", got)
	}
}

func TestSubscription(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(72*time.Hour + time.Hour)

	tests := []struct {
		name   string
		user   *User
		active bool
		days   int
	}{
		{"Нет пользователя", nil, false, 0},
		{"Без подписки", &User{IsActive: true}, false, 0},
		{"Активная", &User{IsActive: true, SubscriptionEnd: &end}, true, 3},
		{"Выключена", &User{IsActive: false, SubscriptionEnd: &end}, false, 3},
		{"Истекла", &User{IsActive: true, SubscriptionEnd: &now}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasActiveSubscription(now); got != tt.active {
				t.Errorf("HasActiveSubscription() = %v, want %v", got, tt.active)
			}
			if got := tt.user.DaysLeft(now); got != tt.days {
				t.Errorf("DaysLeft() = %d, want %d", got, tt.days)
			}
		})
	}
}
