package copycatch

import "testing"

func validParams() Params {
	return Params{DeltaT: 180 * day, N: 3, M: 2, Rho: 0.5, Beta: 2, Jobs: 1}
}

func TestParamsValidate(t *testing.T) {
	if err := validParams().Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	bad := []func(*Params){
		func(p *Params) { p.DeltaT = 0 },
		func(p *Params) { p.DeltaT = -1 },
		func(p *Params) { p.N = 0 },
		func(p *Params) { p.M = 0 },
		func(p *Params) { p.Rho = 0 },
		func(p *Params) { p.Rho = 1.5 },
		func(p *Params) { p.Beta = 0 },
		func(p *Params) { p.Jobs = 0 },
	}
	for i, mutate := range bad {
		p := validParams()
		mutate(&p)
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, p)
		}
	}
}

func TestMaxIterations(t *testing.T) {
	cases := []struct {
		n, m int
		beta float64
		want int
	}{
		{n: 3, m: 2, beta: 2, want: 6},
		{n: 2, m: 4, beta: 2, want: 8},
		{n: 1, m: 1, beta: 0.5, want: 1},
		{n: 5, m: 1, beta: 1.5, want: 8}, // ceil(7.5)
	}
	for _, tc := range cases {
		p := Params{DeltaT: day, N: tc.n, M: tc.m, Rho: 1, Beta: tc.beta, Jobs: 1}
		if got := p.MaxIterations(); got != tc.want {
			t.Fatalf("MaxIterations(n=%d m=%d beta=%g) = %d, want %d", tc.n, tc.m, tc.beta, got, tc.want)
		}
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{Start: 100, End: 200}
	if !w.Contains(100) {
		t.Fatal("window start should be inclusive")
	}
	if !w.Contains(199) {
		t.Fatal("expected 199 inside [100, 200)")
	}
	if w.Contains(200) {
		t.Fatal("window end should be exclusive")
	}
	if w.Contains(99) {
		t.Fatal("expected 99 outside window")
	}
}
