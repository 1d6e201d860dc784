package model

import (
	"strconv"
	"strings"
)

// IsolateExecMeta is the parsed form of isolate's `--meta=` report file: a
// textual `key:value` per line. Grounded on
// original_source/treadmill/models.py's IsolateExecMeta(ObjectDict), with
// each dynamic property turned into an explicit optional field per spec
// §9's "Generic DataModel/schema reflection -> define each wire type
// explicitly" redesign flag. max-rss and cg-mem are stored already
// converted from kB to bytes, per spec §3.
type IsolateExecMeta struct {
	Time         *float64
	TimeWall     *float64
	MaxRSSBytes  *int64
	CgMemBytes   *int64
	ExitCode     *int
	ExitSig      *int
	Killed       bool
	Message      string
	CSWVoluntary *int
	CSWForced    *int
}

// ParseIsolateExecMeta parses isolate's meta-file format: lines of
// `key:value`, blanks ignored, unrecognized keys ignored (spec §8
// testable property 4).
func ParseIsolateExecMeta(data string) IsolateExecMeta {
	var meta IsolateExecMeta
	for _, line := range strings.Split(data, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		switch key {
		case "time":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				meta.Time = &v
			}
		case "time-wall":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				meta.TimeWall = &v
			}
		case "max-rss":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				v *= 1024
				meta.MaxRSSBytes = &v
			}
		case "cg-mem":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				v *= 1024
				meta.CgMemBytes = &v
			}
		case "exitcode":
			if v, err := strconv.Atoi(value); err == nil {
				meta.ExitCode = &v
			}
		case "exitsig":
			if v, err := strconv.Atoi(value); err == nil {
				meta.ExitSig = &v
			}
		case "csw-voluntary":
			if v, err := strconv.Atoi(value); err == nil {
				meta.CSWVoluntary = &v
			}
		case "csw-forced":
			if v, err := strconv.Atoi(value); err == nil {
				meta.CSWForced = &v
			}
		case "killed":
			meta.Killed = true
		case "message":
			meta.Message = value
		}
	}
	return meta
}

// Serialize renders meta back into isolate's k:v line format, used by
// tests to verify the round-trip property (spec §8 #4) and by anything
// that needs to replay a captured meta file.
func (m IsolateExecMeta) Serialize() string {
	var b strings.Builder
	writeFloat := func(key string, v *float64) {
		if v == nil {
			return
		}
		b.WriteString(key)
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(*v, 'f', 3, 64))
		b.WriteByte('\n')
	}
	writeKB := func(key string, v *int64) {
		if v == nil {
			return
		}
		b.WriteString(key)
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(*v/1024, 10))
		b.WriteByte('\n')
	}
	writeInt := func(key string, v *int) {
		if v == nil {
			return
		}
		b.WriteString(key)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(*v))
		b.WriteByte('\n')
	}

	writeFloat("time", m.Time)
	writeFloat("time-wall", m.TimeWall)
	writeKB("max-rss", m.MaxRSSBytes)
	writeKB("cg-mem", m.CgMemBytes)
	writeInt("csw-voluntary", m.CSWVoluntary)
	writeInt("csw-forced", m.CSWForced)
	writeInt("exitcode", m.ExitCode)
	writeInt("exitsig", m.ExitSig)
	if m.Killed {
		b.WriteString("killed:1\n")
	}
	if m.Message != "" {
		b.WriteString("message:")
		b.WriteString(m.Message)
		b.WriteByte('\n')
	}
	return b.String()
}
