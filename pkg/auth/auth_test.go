package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stub is a fixed-outcome authenticator for chain tests.
type stub struct {
	result Result
	called *bool
}

func (s *stub) Authenticate(_ context.Context, _ *http.Request) Result {
	if s.called != nil {
		*s.called = true
	}
	return s.result
}

func TestChainFirstYesWins(t *testing.T) {
	secondCalled := false
	chain := &Chain{
		Authenticators: []Authenticator{
			&stub{result: Result{Decision: Yes, Identity: &Identity{Subject: "alice"}}},
			&stub{result: Result{Decision: Yes, Identity: &Identity{Subject: "bob"}}, called: &secondCalled},
		},
	}

	res := chain.Authenticate(context.Background(), httptest.NewRequest("GET", "/", nil))

	if res.Decision != Yes || res.Identity.Subject != "alice" {
		t.Errorf("result = %+v", res)
	}
	if secondCalled {
		t.Error("chain did not stop at first Yes")
	}
}

func TestChainNoStops(t *testing.T) {
	wantErr := errors.New("bad key")
	chain := &Chain{
		Authenticators: []Authenticator{
			&stub{result: Result{Decision: Abstain}},
			&stub{result: Result{Decision: No, Err: wantErr}},
			&stub{result: Result{Decision: Yes, Identity: &Identity{Subject: "x"}}},
		},
	}

	res := chain.Authenticate(context.Background(), httptest.NewRequest("GET", "/", nil))

	if res.Decision != No || !errors.Is(res.Err, wantErr) {
		t.Errorf("result = %+v", res)
	}
}

func TestChainAllAbstainUsesDefault(t *testing.T) {
	chain := &Chain{
		Authenticators:  []Authenticator{&stub{result: Result{Decision: Abstain}}},
		DefaultDecision: Yes,
	}
	res := chain.Authenticate(context.Background(), httptest.NewRequest("GET", "/", nil))
	if res.Decision != Yes || res.Identity.Subject != "anonymous" {
		t.Errorf("result = %+v", res)
	}

	chain.DefaultDecision = No
	res = chain.Authenticate(context.Background(), httptest.NewRequest("GET", "/", nil))
	if res.Decision != No || !errors.Is(res.Err, ErrUnauthenticated) {
		t.Errorf("result = %+v", res)
	}
}
