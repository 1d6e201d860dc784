package sandbox

import (
	"strings"
	"testing"

	"treadmill/internal/afp"
	"treadmill/internal/model"
)

func testRoots() afp.Roots {
	return afp.Roots{HostWorkspaceRoot: "/var/treadmill/workspace", S3FSRoot: "/mnt/s3fs"}
}

func cppProfile() model.LanguageProfile {
	table := model.BuildLanguageTable(model.ImageRefs{
		BuilderImage: map[model.Language]string{model.LangCPP: "builder-cpp"},
		SandboxImage: map[model.Language]string{model.LangCPP: "sandbox-cpp"},
	})
	return table[model.LangCPP]
}

func javaProfile() model.LanguageProfile {
	table := model.BuildLanguageTable(model.ImageRefs{
		SandboxImage: map[model.Language]string{model.LangJava: "sandbox-java"},
	})
	return table[model.LangJava]
}

func TestBuildExecSubmArgv_CPPLiteralTemplate(t *testing.T) {
	roots := testRoots()
	p := ExecSubmParams{
		Bin:    afp.SubmissionBinary(roots, 1, "main"),
		Stdin:  afp.SandboxLogFile(roots, 1, "x.stdin"),
		Stdout: afp.SandboxLogFile(roots, 1, "x.stdout"),
		Stderr: afp.SandboxLogFile(roots, 1, "x.stderr"),
		Meta:   afp.SandboxLogFile(roots, 1, "x.meta"),
		Limits: Limits{MemLimitBytes: 256 * 1024 * 1024, TimeLimitSeconds: 1, FileSizeLimitKB: 65536, PIDLimit: 1},
	}
	argv, err := buildExecSubmArgv(cppProfile(), p)
	if err != nil {
		t.Fatalf("buildExecSubmArgv() error = %v", err)
	}
	line := strings.Join(argv, " ")

	for _, want := range []string{
		"isolate",
		"--dir=/sandbox=/workspace/sandbox:rw",
		"--cg",
		"--meta=/workspace/1/logs/x.meta", // container view, not sandbox
		"--cg-mem=524288",                 // 256MiB/1024*2
		"--time=1",
		"--wall-time=3",
		"--extra-time=1.0",
		"--fsize=65536",
		"--processes=1",
		"--stdin=/sandbox/logs/x.stdin", // sandbox view
		"--stdout=/sandbox/logs/x.stdout",
		"--stderr=/sandbox/logs/x.stderr",
		"--run",
		"--",
		"/sandbox/subm/main",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("argv %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "--dir=/etc=") {
		t.Error("cpp should not request an /etc dir remap")
	}
}

func TestBuildExecSubmArgv_JavaProcessesFloorAndEtcDir(t *testing.T) {
	roots := testRoots()
	p := ExecSubmParams{
		Bin:             afp.SubmissionBinary(roots, 1, "Main.class"),
		Stdin:           afp.SandboxLogFile(roots, 1, "x.stdin"),
		Stdout:          afp.SandboxLogFile(roots, 1, "x.stdout"),
		Stderr:          afp.SandboxLogFile(roots, 1, "x.stderr"),
		Meta:            afp.SandboxLogFile(roots, 1, "x.meta"),
		Limits:          Limits{MemLimitBytes: 1024, TimeLimitSeconds: 2, FileSizeLimitKB: 1024, PIDLimit: 1},
		EtcContainerDir: "/workspace/1/etc",
	}
	argv, err := buildExecSubmArgv(javaProfile(), p)
	if err != nil {
		t.Fatalf("buildExecSubmArgv() error = %v", err)
	}
	line := strings.Join(argv, " ")

	if !strings.Contains(line, "--processes=16") {
		t.Errorf("java must floor --processes at 16, got %q", line)
	}
	if !strings.Contains(line, "--dir=/etc=/workspace/1/etc:rw") {
		t.Errorf("expected the python3-style etc remap to be honored when requested, got %q", line)
	}
}
