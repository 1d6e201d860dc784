package model

import "time"

// JudgeRequest is the queued demand to judge one submission against its
// problem's spec. Its ID is stable across retries and is the per-request
// workspace identifier (spec §3's "Per-request workspace identifier").
type JudgeRequest struct {
	ID           int64     `json:"id"`
	ProblemID    int64     `json:"problem_id"`
	SubmissionID int64     `json:"submission_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TestCase is one input/expected-output pair, 1-based within its TestSet.
type TestCase struct {
	ID        int    `json:"id"`
	InputKey  string `json:"input_key"`
	OutputKey string `json:"output_key"`
}

// TestSet scores all-or-nothing: its Score is awarded iff every case's
// terminal status is PASSED.
type TestSet struct {
	ID    int        `json:"id"`
	Score int        `json:"score"`
	Cases []TestCase `json:"cases"`
}

// Grader is a problem-specific program that decides correctness when
// byte/whitespace diff is insufficient.
type Grader struct {
	SrcKey string   `json:"src_key"`
	Lang   Language `json:"lang"`
}

// JudgeSpec is the per-problem data: limits, test sets, optional grader.
type JudgeSpec struct {
	TotalScore       int        `json:"total_score"`
	TestSets         []TestSet  `json:"test_sets"`
	Grader           *Grader    `json:"grader,omitempty"`
	MemLimitBytes    int64      `json:"mem_limit_bytes"`
	TimeLimitSeconds float64    `json:"time_limit_seconds"`
	FileSizeLimitKB  int64      `json:"file_size_limit_kilos"`
	PIDLimit         int        `json:"pid_limits"`
}

// Problem is a problem id and its JudgeSpec.
type Problem struct {
	ID   int64     `json:"id"`
	Spec JudgeSpec `json:"judge_spec"`
}

// Submission is the user's code, its owning Problem, and the language tag.
type Submission struct {
	ID      int64    `json:"id"`
	OwnerID int64    `json:"user_id"`
	Lang    Language `json:"lang"`
	SrcKey  string   `json:"src_key"`
	Problem Problem  `json:"problem"`
}

// JudgeStatus is the overall per-run status, per spec §4.11's state
// machine: ENQUEUED -> IN_PROGRESS -> {PASSED,FAILED,COMPILE_ERROR,
// INTERNAL_ERROR}, with INTERNAL_ERROR retrying back to ENQUEUED.
type JudgeStatus string

const (
	StatusEnqueued      JudgeStatus = "ENQUEUED"
	StatusInProgress    JudgeStatus = "IN_PROGRESS"
	StatusPassed        JudgeStatus = "PASSED"
	StatusFailed        JudgeStatus = "FAILED"
	StatusCompileError  JudgeStatus = "COMPILE_ERROR"
	StatusInternalError JudgeStatus = "INTERNAL_ERROR"
)

// TestCaseStatus is the terminal state of one test case:
// NOT_JUDGED -> {PASSED,WA,TLE,MLE,RTE}.
type TestCaseStatus string

const (
	CaseNotJudged          TestCaseStatus = "NA"
	CaseRuntimeError       TestCaseStatus = "RTE"
	CaseWrongAnswer        TestCaseStatus = "WA"
	CaseMemoryLimitExceed  TestCaseStatus = "MLE"
	CaseTimeLimitExceeded  TestCaseStatus = "TLE"
	CasePassed             TestCaseStatus = "PASS"
)

// TestCaseJudgeResult is the per-case outcome. ErrorMessage is set only for
// RTE (captured stderr/stdout excerpt).
type TestCaseJudgeResult struct {
	CaseID             int            `json:"case_id"`
	Status             TestCaseStatus `json:"status"`
	MemoryUsedBytes    int64          `json:"memory_used_bytes"`
	TimeElapsedSeconds float64        `json:"time_elapsed_seconds"`
	ErrorMessage       string         `json:"error_message,omitempty"`
}

// TestSetJudgeResult is the per-set outcome: the score actually awarded.
type TestSetJudgeResult struct {
	SetID int `json:"set_id"`
	Score int `json:"score"`
}

// JudgeResult is the overall outcome reported back to the front-office.
type JudgeResult struct {
	Status             JudgeStatus `json:"status"`
	Error              string      `json:"error,omitempty"`
	Score              int         `json:"score"`
	TimeElapsedSeconds float64     `json:"time_elapsed_seconds"`
	MemoryUsedBytes    int64       `json:"memory_used_bytes"`
}
