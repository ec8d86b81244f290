package orders

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusUnderPaying, StatusPending},
		{StatusUnderPaying, StatusCancelled},
		{StatusPending, StatusOnProcess},
		{StatusPending, StatusCancelled},
		{StatusOnProcess, StatusOnShipping},
		{StatusOnProcess, StatusCancelled},
		{StatusOnShipping, StatusArrived},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusUnderPaying, StatusOnProcess},
		{StatusUnderPaying, StatusArrived},
		{StatusPending, StatusUnderPaying},
		{StatusPending, StatusArrived},
		{StatusOnShipping, StatusPending},
		{StatusOnShipping, StatusCancelled},
		{StatusArrived, StatusCancelled},
		{StatusCancelled, StatusUnderPaying},
		{StatusCancelled, StatusPending},
		{StatusPending, StatusPending},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusArrived, StatusCancelled} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusUnderPaying, StatusPending, StatusOnProcess, StatusOnShipping} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
