package tracker

import "testing"

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusSuccessful, StatusFailed, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StatusPending.Terminal() {
		t.Error("PENDING must not be terminal")
	}
	if Status("UNKNOWN").Terminal() {
		t.Error("unknown statuses must not be terminal")
	}
}

func TestObserverValid(t *testing.T) {
	cases := []struct {
		obs  Observer
		want bool
	}{
		{Observer{UserID: "u1"}, true},
		{Observer{SessionID: "s1"}, true},
		{Observer{}, false},
		{Observer{UserID: "u1", SessionID: "s1"}, false},
	}
	for _, c := range cases {
		if got := c.obs.Valid(); got != c.want {
			t.Errorf("Valid(%+v) = %v, want %v", c.obs, got, c.want)
		}
	}
}
