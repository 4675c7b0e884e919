package rbac

import "testing"

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	cases := []struct {
		role, perm string
		want       bool
	}{
		{"student", "attempt:start", true},
		{"student", "result:view-own", true},
		{"student", "result:grade", false},
		{"student", "quiz:create", false},
		{"teacher", "quiz:create", true},
		{"teacher", "result:grade", true},
		{"teacher", "attempt:start", false},
		{"admin", "anything:at_all", true},
		{"", "quiz:view", false},
		{"ghost-role", "quiz:view", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestAny(t *testing.T) {
	c := NewChecker(nil)
	if !c.Any("student", "result:grade", "result:view-own") {
		t.Fatal("student should match result:view-own")
	}
	if c.Any("student", "result:grade", "weights:set") {
		t.Fatal("student matched a teacher-only set")
	}
}

func TestWildcardPrefix(t *testing.T) {
	c := NewChecker(map[string][]string{"auditor": {"result:*"}})
	if !c.Has("auditor", "result:view-all") {
		t.Fatal("prefix wildcard did not match")
	}
	if c.Has("auditor", "quiz:view") {
		t.Fatal("prefix wildcard matched outside its prefix")
	}
}
