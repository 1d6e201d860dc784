// Package model defines the judge worker's wire and domain types: the
// request/result data model, the per-language execution table, and the
// isolate exec-meta parser. Grounded on original_source/treadmill/models.py
// and original_source/treadmill/langs/profile.py, reshaped per spec §9's
// "Enum-with-methods for Language" redesign flag into a tagged variant plus
// a fixed table of per-variant records.
package model

import "path/filepath"

// Language is the closed set of source languages the worker compiles and
// runs. UNKNOWN is the zero value so a missing/invalid tag on the wire
// fails lookups explicitly instead of aliasing to a real language.
type Language string

const (
	LangUnknown Language = ""
	LangCPP     Language = "cpp"
	LangJava    Language = "java"
	LangPython3 Language = "python3"
	LangGo      Language = "go"
)

// ImageRefs carries the pinned, environment-specific container image
// references for builders and sandboxes, keyed by language. Populated from
// internal/config; kept out of LanguageProfile itself so the profile table
// is pure data derived once at startup, not a global depending on env vars
// (the original's config.py hardcodes these as class constants instead —
// we keep them configurable per spec §6's "pinned refs, language-tagged").
type ImageRefs struct {
	BuilderImage map[Language]string
	SandboxImage map[Language]string
}

// LanguageProfile is the fixed per-language record spec §9 calls for in
// place of the original's ABC-with-registry LangProfile.
type LanguageProfile struct {
	Lang         Language
	SrcName      string
	BinName      string
	BuilderImage string
	SandboxImage string
	NeedsCompile bool
	// MinProcesses is the floor on --processes the sandbox exec applies
	// (spec §4.6: "N >= 16 for java, JVM needs many").
	MinProcesses int
	// CompileCmd builds the builder container argv; nil when NeedsCompile
	// is false.
	CompileCmd func(src, out string) []string
	// ExecCmd builds the sandbox/grader container argv for running bin.
	ExecCmd func(bin string) []string
}

// BuildLanguageTable constructs the per-variant record table per spec
// §4.5/§4.6's compile/execute command tables, using refs for the
// environment-pinned image tags.
func BuildLanguageTable(refs ImageRefs) map[Language]LanguageProfile {
	return map[Language]LanguageProfile{
		LangCPP: {
			Lang:         LangCPP,
			SrcName:      "main.cpp",
			BinName:      "main",
			BuilderImage: refs.BuilderImage[LangCPP],
			SandboxImage: refs.SandboxImage[LangCPP],
			NeedsCompile: true,
			MinProcesses: 1,
			CompileCmd: func(src, out string) []string {
				return []string{"g++", "-std=c++14", "-O2", "-o", out, src}
			},
			ExecCmd: func(bin string) []string {
				return []string{bin}
			},
		},
		LangGo: {
			Lang:         LangGo,
			SrcName:      "main.go",
			BinName:      "main",
			BuilderImage: refs.BuilderImage[LangGo],
			SandboxImage: refs.SandboxImage[LangGo],
			NeedsCompile: true,
			MinProcesses: 1,
			CompileCmd: func(src, out string) []string {
				return []string{"go", "build", "-o", out, src}
			},
			ExecCmd: func(bin string) []string {
				return []string{bin}
			},
		},
		LangJava: {
			Lang:         LangJava,
			SrcName:      "Main.java",
			BinName:      "Main.class",
			BuilderImage: refs.BuilderImage[LangJava],
			SandboxImage: refs.SandboxImage[LangJava],
			NeedsCompile: true,
			MinProcesses: 16,
			CompileCmd: func(src, out string) []string {
				return []string{"javac", "-d", filepath.Dir(out), src}
			},
			ExecCmd: func(bin string) []string {
				return []string{
					"/usr/bin/java",
					"-XX:ParallelGCThreads=1", "-Xmx256M", "-Xss16M",
					"-cp", filepath.Dir(bin), "Main",
				}
			},
		},
		LangPython3: {
			Lang:         LangPython3,
			SrcName:      "main.py",
			BinName:      "main.py",
			BuilderImage: refs.BuilderImage[LangPython3],
			SandboxImage: refs.SandboxImage[LangPython3],
			NeedsCompile: false,
			MinProcesses: 1,
			ExecCmd: func(bin string) []string {
				return []string{"/usr/local/bin/python", bin}
			},
		},
	}
}

// Profile looks up lang in the table, returning UnsupportedLanguage
// (via the ok=false path; callers translate to the taxonomy error) when
// absent.
func Profile(table map[Language]LanguageProfile, lang Language) (LanguageProfile, bool) {
	p, ok := table[lang]
	return p, ok
}
