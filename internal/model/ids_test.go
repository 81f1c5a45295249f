package model

import "testing"

func TestParseTestRunID(t *testing.T) {
	id, err := ParseTestRunID("myrepo.mytest.run1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Repo != "myrepo" || id.Test != "mytest" || id.Run != "run1" {
		t.Fatalf("unexpected parse result: %+v", id)
	}
	if id.String() != "myrepo.mytest.run1" {
		t.Fatalf("round trip mismatch: %s", id.String())
	}
}

func TestParseTestRunIDShapeMismatch(t *testing.T) {
	cases := []string{"", "repo.test", "repo.test.run.extra", "repo..run", ".test.run"}
	for _, c := range cases {
		if _, err := ParseTestRunID(c); err == nil {
			t.Errorf("ParseTestRunID(%q): expected error, got nil", c)
		} else if !IsClass(err, ClassConfig) {
			t.Errorf("ParseTestRunID(%q): expected Config error, got %v", c, err)
		}
	}
}

func TestParseTestRunSourceID(t *testing.T) {
	id, err := ParseTestRunSourceID("repo.test.run.src1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Source != "src1" || id.String() != "repo.test.run.src1" {
		t.Fatalf("unexpected parse result: %+v", id)
	}
}

func TestParseTestRunReactionAndServerID(t *testing.T) {
	r, err := ParseTestRunReactionID("repo.test.run.reaction1")
	if err != nil || r.Reaction != "reaction1" {
		t.Fatalf("unexpected reaction parse: %+v err=%v", r, err)
	}
	s, err := ParseTestRunDrasiServerID("repo.test.run.server1")
	if err != nil || s.Server != "server1" {
		t.Fatalf("unexpected server parse: %+v err=%v", s, err)
	}
}
