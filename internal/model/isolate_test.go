package model_test

import (
	"testing"

	"treadmill/internal/model"
)

func TestParseIsolateExecMeta(t *testing.T) {
	data := "time:0.012\ntime-wall:0.085\nmax-rss:548\ncsw-voluntary:5\ncsw-forced:1\nexitcode:0\n\n"
	meta := model.ParseIsolateExecMeta(data)

	if meta.Time == nil || *meta.Time != 0.012 {
		t.Errorf("Time = %v, want 0.012", meta.Time)
	}
	if meta.TimeWall == nil || *meta.TimeWall != 0.085 {
		t.Errorf("TimeWall = %v, want 0.085", meta.TimeWall)
	}
	if meta.MaxRSSBytes == nil || *meta.MaxRSSBytes != 548*1024 {
		t.Errorf("MaxRSSBytes = %v, want %d (kB->bytes)", meta.MaxRSSBytes, 548*1024)
	}
	if meta.ExitCode == nil || *meta.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", meta.ExitCode)
	}
	if meta.Killed {
		t.Error("Killed should be false when the key is absent")
	}
}

func TestParseIsolateExecMeta_Killed(t *testing.T) {
	meta := model.ParseIsolateExecMeta("time:5.000\ntime-wall:5.010\nkilled:1\nmessage:Time limit exceeded.\nexitsig:9\n")
	if !meta.Killed {
		t.Error("expected Killed to be true when the key is present")
	}
	if meta.Message != "Time limit exceeded." {
		t.Errorf("Message = %q, want %q", meta.Message, "Time limit exceeded.")
	}
	if meta.ExitSig == nil || *meta.ExitSig != 9 {
		t.Errorf("ExitSig = %v, want 9", meta.ExitSig)
	}
}

func TestParseIsolateExecMeta_IgnoresBlanksAndUnknownKeys(t *testing.T) {
	meta := model.ParseIsolateExecMeta("\ntime:1.000\n\nbogus-future-key:xyz\n\n")
	if meta.Time == nil || *meta.Time != 1.000 {
		t.Errorf("Time = %v, want 1.000", meta.Time)
	}
}

func TestIsolateExecMeta_RoundTrip(t *testing.T) {
	// Spec §8 testable property 4: parse(serialize(meta)) preserves every
	// recognized field.
	original := model.ParseIsolateExecMeta("time:0.500\ntime-wall:0.600\nmax-rss:1024\ncg-mem:2048\ncsw-voluntary:3\ncsw-forced:4\nexitcode:1\nexitsig:0\nkilled:1\nmessage:oom\n")

	reparsed := model.ParseIsolateExecMeta(original.Serialize())

	switch {
	case *reparsed.Time != *original.Time:
		t.Errorf("Time mismatch after round-trip: %v != %v", reparsed.Time, original.Time)
	case *reparsed.TimeWall != *original.TimeWall:
		t.Errorf("TimeWall mismatch after round-trip")
	case *reparsed.MaxRSSBytes != *original.MaxRSSBytes:
		t.Errorf("MaxRSSBytes mismatch after round-trip")
	case *reparsed.CSWVoluntary != *original.CSWVoluntary:
		t.Errorf("CSWVoluntary mismatch after round-trip")
	case *reparsed.CSWForced != *original.CSWForced:
		t.Errorf("CSWForced mismatch after round-trip")
	case *reparsed.ExitCode != *original.ExitCode:
		t.Errorf("ExitCode mismatch after round-trip")
	case reparsed.Killed != original.Killed:
		t.Errorf("Killed mismatch after round-trip")
	case reparsed.Message != original.Message:
		t.Errorf("Message mismatch after round-trip")
	}

	// exitsig:0 round-trips through writeInt even though it's the zero
	// value, since the pointer is non-nil.
	if reparsed.ExitSig == nil || *reparsed.ExitSig != 0 {
		t.Errorf("ExitSig = %v, want 0 (present, not absent)", reparsed.ExitSig)
	}
	if original.CgMemBytes == nil || *reparsed.CgMemBytes != *original.CgMemBytes {
		t.Errorf("CgMemBytes mismatch after round-trip")
	}
}
