package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudrelay/edge-router/internal/route"
)

func TestMatchExactBeatsWildcard(t *testing.T) {
	t.Parallel()

	routes := route.Config{
		"/api/users": "https://exact.example.com",
		"/api/*":     "https://wild.example.com",
	}

	m := MatchPath("/api/users", routes)
	require.NotNil(t, m)
	assert.Equal(t, "/api/users", m.Pattern)
	assert.Equal(t, "https://exact.example.com", m.Target)
	assert.False(t, m.Wildcard)
}

func TestMatchLongestPrefixWinsAmongWildcards(t *testing.T) {
	t.Parallel()

	routes := route.Config{
		"/api/*":          "https://one.example.com",
		"/api/v2/*":       "https://two.example.com",
		"/api/v2/users/*": "https://three.example.com",
	}

	m := MatchPath("/api/v2/users/123", routes)
	require.NotNil(t, m)
	assert.Equal(t, "/api/v2/users/*", m.Pattern)
	assert.Equal(t, "123", m.WildcardPath)
}

func TestMatchParamBeatsWildcard(t *testing.T) {
	t.Parallel()

	routes := route.Config{
		"/api/users/:id": "https://param.example.com",
		"/api/users/*":   "https://wild.example.com",
	}

	m := MatchPath("/api/users/42", routes)
	require.NotNil(t, m)
	assert.Equal(t, "/api/users/:id", m.Pattern)
}

func TestMatchWildcardExtraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		pattern      string
		path         string
		wantWildcard string
	}{
		{
			name:         "simple suffix",
			pattern:      "/api/*",
			path:         "/api/users/123",
			wantWildcard: "users/123",
		},
		{
			name:         "root wildcard matches root",
			pattern:      "/*",
			path:         "/",
			wantWildcard: "",
		},
		{
			name:         "root wildcard matches page",
			pattern:      "/*",
			path:         "/homepage",
			wantWildcard: "homepage",
		},
		{
			name:         "query-like suffix is preserved literally",
			pattern:      "/api/*",
			path:         "/api/users?page=1",
			wantWildcard: "users?page=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := MatchPath(tt.path, route.Config{tt.pattern: "https://a.example.com"})
			require.NotNil(t, m)
			assert.True(t, m.Wildcard)
			assert.Equal(t, tt.wantWildcard, m.WildcardPath)
			assert.Equal(t, tt.path, m.MatchedPath)
		})
	}
}

func TestMatchNoMatchPath(t *testing.T) {
	t.Parallel()

	assert.Nil(t, MatchPath("/anything", nil))
	assert.Nil(t, MatchPath("/anything", route.Config{}))
	assert.Nil(t, MatchPath("/other", route.Config{"/api": "https://a.example.com"}))
	// Exact patterns only match identical paths.
	assert.Nil(t, MatchPath("/api/users", route.Config{"/api": "https://a.example.com"}))
	assert.Nil(t, MatchPath("/api/", route.Config{"/api": "https://a.example.com"}))
}

func TestMatchParamSegments(t *testing.T) {
	t.Parallel()

	routes := route.Config{"/users/:id/posts/:postId": "https://posts.example.com"}

	m := MatchPath("/users/7/posts/99", routes)
	require.NotNil(t, m)
	assert.Equal(t, "/users/:id/posts/:postId", m.Pattern)

	// A parameter never spans a slash.
	assert.Nil(t, MatchPath("/users/7/8/posts/99", routes))
	assert.Nil(t, MatchPath("/users//posts/99", routes))
}

func TestMatchRepeatedParamName(t *testing.T) {
	t.Parallel()

	m := MatchPath("/a/b", route.Config{"/:x/:x": "https://a.example.com"})
	require.NotNil(t, m)
	assert.Equal(t, "/:x/:x", m.Pattern)
}

func TestMatchTieBreakLexicographic(t *testing.T) {
	t.Parallel()

	// Same class, same segment count, both match: the lexicographically
	// smaller pattern wins, deterministically.
	routes := route.Config{
		"/files/:name": "https://b.example.com",
		"/files/:id":   "https://a.example.com",
	}

	for i := 0; i < 20; i++ {
		m := MatchPath("/files/readme", routes)
		require.NotNil(t, m)
		assert.Equal(t, "/files/:id", m.Pattern)
	}
}

func TestBuildTargetURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		match Match
		want  string
	}{
		{
			name: "exact match keeps target",
			match: Match{
				Target:  "https://auth.example.com/login",
				Pattern: "/api/auth/login",
			},
			want: "https://auth.example.com/login",
		},
		{
			name: "trailing slash stripped",
			match: Match{
				Target:  "https://api.example.com/",
				Pattern: "/api",
			},
			want: "https://api.example.com",
		},
		{
			name: "wildcard suffix appended",
			match: Match{
				Target:       "https://api.example.com/",
				Pattern:      "/api/*",
				Wildcard:     true,
				WildcardPath: "users/123",
			},
			want: "https://api.example.com/users/123",
		},
		{
			name: "wildcard suffix with leading slash normalized",
			match: Match{
				Target:       "https://api.example.com",
				Pattern:      "/api*",
				Wildcard:     true,
				WildcardPath: "/users",
			},
			want: "https://api.example.com/users",
		},
		{
			name: "empty wildcard suffix keeps target",
			match: Match{
				Target:       "https://default.example.com",
				Pattern:      "/*",
				Wildcard:     true,
				WildcardPath: "",
			},
			want: "https://default.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BuildTargetURL(&tt.match))
		})
	}
}

func TestMatchEndToEndScenario(t *testing.T) {
	t.Parallel()

	routes := route.Config{
		"/api/auth/login": "https://auth.example.com/login",
		"/api/auth/*":     "https://auth.example.com",
		"/*":              "https://default.example.com",
	}

	m := MatchPath("/api/auth/logout", routes)
	require.NotNil(t, m)
	assert.Equal(t, "/api/auth/*", m.Pattern)
	assert.Equal(t, "https://auth.example.com/logout", BuildTargetURL(m))

	m = MatchPath("/homepage", routes)
	require.NotNil(t, m)
	assert.Equal(t, "/*", m.Pattern)
	assert.Equal(t, "https://default.example.com/homepage", BuildTargetURL(m))

	m = MatchPath("/api/auth/login", routes)
	require.NotNil(t, m)
	assert.Equal(t, "/api/auth/login", m.Pattern)
	assert.Equal(t, "https://auth.example.com/login", BuildTargetURL(m))
}

func TestCompilePatternEscapesMetacharacters(t *testing.T) {
	t.Parallel()

	// Dots and pluses in patterns are literal.
	routes := route.Config{"/v1.0/c++": "https://a.example.com"}

	require.NotNil(t, MatchPath("/v1.0/c++", routes))
	assert.Nil(t, MatchPath("/v1X0/c++", routes))
}
