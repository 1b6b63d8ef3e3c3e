package radio

import "testing"

func TestSegment_SequenceNumber(t *testing.T) {
	cases := []struct {
		filename string
		want     int64
	}{
		{"segment_3351.ts", 3351},
		{"segment_3351399.ts", 3351399},
		{"seg_42.ts", 42},
		{"chunk10.aac", 10},
		{"media_0.ts", 0},
		{"intro.ts", NoSequence},
		{"noextension", NoSequence},
		{"", NoSequence},
	}
	for _, c := range cases {
		got := Segment{Filename: c.filename}.SequenceNumber()
		if got != c.want {
			t.Errorf("SequenceNumber(%q) = %d, want %d", c.filename, got, c.want)
		}
	}
}

func TestSegment_Equal_byFilenameOnly(t *testing.T) {
	a := Segment{Duration: 10.0, Filename: "seg_1.ts"}
	b := Segment{Duration: 9.5, Filename: "seg_1.ts"}
	if !a.Equal(b) {
		t.Error("segments with the same filename should be equal regardless of duration")
	}

	c := Segment{Duration: 10.0, Filename: "seg_2.ts"}
	if a.Equal(c) {
		t.Error("segments with different filenames should never be equal")
	}
}
