package vocab_test

import (
	"testing"

	"github.com/asrlabs/voxgate/internal/vocab"
)

func TestCorrector_SingleWordRewrite(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"Eldrinax", "Grimjaw"})

	// "eldrinacks" shares Double Metaphone codes with "Eldrinax".
	got, corrections := c.Correct("talk to eldrinacks tomorrow")
	if got != "talk to Eldrinax tomorrow" {
		t.Errorf("Correct = %q, want %q", got, "talk to Eldrinax tomorrow")
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	if corrections[0].Original != "eldrinacks" || corrections[0].Corrected != "Eldrinax" {
		t.Errorf("correction = %+v", corrections[0])
	}
	if corrections[0].Confidence < 0.7 {
		t.Errorf("confidence = %f, want >= 0.7", corrections[0].Confidence)
	}
}

func TestCorrector_MultiWordHintWins(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"Tower of Whispers", "Eldrinax"})

	got, corrections := c.Correct("meet at the tower of wispers")
	if got != "meet at the Tower of Whispers" {
		t.Errorf("Correct = %q, want %q", got, "meet at the Tower of Whispers")
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	if corrections[0].Original != "tower of wispers" {
		t.Errorf("original = %q, want the full three-word run", corrections[0].Original)
	}
}

func TestCorrector_TrailingPunctuationPreserved(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"Eldrinax"})

	got, _ := c.Correct("is that eldrinacks?")
	if got != "is that Eldrinax?" {
		t.Errorf("Correct = %q, want %q", got, "is that Eldrinax?")
	}
}

func TestCorrector_ExactHintNotReportedAsCorrection(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"Eldrinax"})

	got, corrections := c.Correct("eldrinax is here")
	if got != "Eldrinax is here" {
		t.Errorf("Correct = %q, want canonical casing applied", got)
	}
	// A case-only rewrite is not a correction.
	if len(corrections) != 0 {
		t.Errorf("corrections = %v, want none", corrections)
	}
}

func TestCorrector_UnrelatedTextUnchanged(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"Eldrinax", "Grimjaw"})

	in := "the quick brown fox"
	got, corrections := c.Correct(in)
	if got != in {
		t.Errorf("Correct = %q, want input unchanged", got)
	}
	if len(corrections) != 0 {
		t.Errorf("corrections = %v, want none", corrections)
	}
}

func TestCorrector_NoHintsIsNoOp(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector(nil)
	in := "anything at all"
	if got, _ := c.Correct(in); got != in {
		t.Errorf("Correct = %q, want input unchanged", got)
	}
}

func TestCorrector_BlankHintsIgnored(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"", "  ", "Grimjaw"})
	got, _ := c.Correct("talk to grimjaw")
	if got != "talk to Grimjaw" {
		t.Errorf("Correct = %q, want %q", got, "talk to Grimjaw")
	}
}

func TestCorrector_FuzzyThresholdRejectsWeakMatches(t *testing.T) {
	t.Parallel()

	// With an impossible phonetic threshold nothing should be rewritten.
	c := vocab.NewCorrector([]string{"Eldrinax"},
		vocab.WithPhoneticThreshold(1.01),
		vocab.WithFuzzyThreshold(1.01),
	)
	in := "talk to eldrinacks"
	if got, _ := c.Correct(in); got != in {
		t.Errorf("Correct = %q, want input unchanged", got)
	}
}
