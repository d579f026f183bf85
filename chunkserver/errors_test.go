package chunkserver

import "testing"

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusOK:           "OK",
		StatusWrongSize:    "WRONGSIZE",
		StatusNotDone:      "NOTDONE",
		Status(255):        "UNKNOWN",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestStatusFromStoreError(t *testing.T) {
	if statusFromStoreError(nil) != StatusOK {
		t.Fatal("nil error must map to StatusOK")
	}
	if statusFromStoreError(errChunkNotDone) != StatusNotDone {
		t.Fatal("errChunkNotDone must map to StatusNotDone")
	}
	if statusFromStoreError(errProtocolViolation) != StatusIO {
		t.Fatal("unrecognized error must map to StatusIO")
	}
}
