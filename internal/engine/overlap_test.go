package engine

import "testing"

func TestOverlapIdentical(t *testing.T) {
	if got := overlap("enjoys vegetarian cooking", "enjoys vegetarian cooking"); got != 1 {
		t.Errorf("identical texts: got %v, want 1", got)
	}
}

func TestOverlapDisjoint(t *testing.T) {
	if got := overlap("enjoys hiking mountains", "allergic peanuts shellfish"); got != 0 {
		t.Errorf("disjoint texts: got %v, want 0", got)
	}
}

func TestOverlapIgnoresStopWordsAndCase(t *testing.T) {
	a := "I am VEGETARIAN"
	b := "the vegetarian"
	if got := overlap(a, b); got != 1 {
		t.Errorf("stopword-only difference: got %v, want 1", got)
	}
}

func TestOverlapPartial(t *testing.T) {
	// {enjoys, vegetarian, cooking} vs {enjoys, vegetarian, cooking, daily}
	got := overlap("enjoys vegetarian cooking", "enjoys vegetarian cooking daily")
	if got < 0.74 || got > 0.76 {
		t.Errorf("partial overlap: got %v, want 0.75", got)
	}
}

func TestOverlapEmpty(t *testing.T) {
	if got := overlap("", "something"); got != 0 {
		t.Errorf("empty text: got %v, want 0", got)
	}
	if got := overlap("the a an", "something"); got != 0 {
		t.Errorf("stopwords-only text: got %v, want 0", got)
	}
}

func TestQueryOverlapNormalizedByQuery(t *testing.T) {
	// Query tokens {cook, dinner}; value covers "cook" only.
	got := queryOverlap("what should I cook for dinner", "likes to cook pasta")
	if got != 0.5 {
		t.Errorf("query overlap: got %v, want 0.5", got)
	}
}

func TestQueryOverlapEmptyQuery(t *testing.T) {
	if got := queryOverlap("", "anything at all"); got != 0 {
		t.Errorf("empty query: got %v, want 0", got)
	}
}
