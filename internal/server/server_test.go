package server

import "testing"

func TestShouldSkipJWT(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want bool
	}{
		{path: "/ping", want: true},
		{path: "/health", want: true},
		{path: "/webhook", want: true},
		{path: "/auth/login", want: true},
		{path: "/auth/refresh", want: false},
		{path: "/api/events", want: false},
		{path: "/webhook/extra", want: false},
	}

	for _, tc := range cases {
		got := shouldSkipJWT(tc.path)
		if got != tc.want {
			t.Fatalf("path=%q want=%v got=%v", tc.path, tc.want, got)
		}
	}
}
