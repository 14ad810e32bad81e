package generation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pascalkienast/H5P-AI-Generator/internal/config"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/repository"
	"github.com/pascalkienast/H5P-AI-Generator/internal/schema"
	"github.com/pascalkienast/H5P-AI-Generator/internal/workflow/port"
	wfprompt "github.com/pascalkienast/H5P-AI-Generator/internal/workflow/prompt"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
)

// ---- 内存实现的测试替身 ----

type fakeSessionRepo struct {
	sessions map[string]*entity.ConversationSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*entity.ConversationSession)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *entity.ConversationSession) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*entity.ConversationSession, error) {
	return r.sessions[id], nil
}

func (r *fakeSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.ConversationSession, error) {
	return r.sessions[id], nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, s *entity.ConversationSession) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) List(ctx context.Context, p repository.Pagination) (*repository.PagedResult[*entity.ConversationSession], error) {
	items := make([]*entity.ConversationSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		items = append(items, s)
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

type fakeTurnRepo struct {
	turns []*entity.ConversationTurn
}

func (r *fakeTurnRepo) Create(ctx context.Context, t *entity.ConversationTurn) error {
	r.turns = append(r.turns, t)
	return nil
}

func (r *fakeTurnRepo) ListBySession(ctx context.Context, sessionID string, p repository.Pagination) (*repository.PagedResult[*entity.ConversationTurn], error) {
	items, _ := r.ListAllBySession(ctx, sessionID)
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (r *fakeTurnRepo) ListAllBySession(ctx context.Context, sessionID string) ([]*entity.ConversationTurn, error) {
	var out []*entity.ConversationTurn
	for _, t := range r.turns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// scriptedModel 按脚本顺序返回回复，超出后重复最后一条
type scriptedModel struct {
	replies []string
	err     error
	calls   int
}

func (m *scriptedModel) Complete(ctx context.Context, system string, msgs []entity.Message) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	idx := m.calls - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return m.replies[idx], nil
}

type fakeFactory struct {
	model port.ChatModel
}

func (f *fakeFactory) Get(ctx context.Context, name string) (port.ChatModel, error) {
	return f.model, nil
}

type fakeSubmitter struct {
	result *port.SubmissionResult
	err    error
	calls  int
}

func (s *fakeSubmitter) Submit(ctx context.Context, doc *entity.ContentDocument) (*port.SubmissionResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type fakeCatalog struct {
	versions entity.VersionMap
}

func (c *fakeCatalog) Versions(ctx context.Context) (entity.VersionMap, error) {
	return c.versions, nil
}

// ---- 脚手架 ----

const validTrueFalseReply = "Here is the document:\n```json\n" +
	`{"library": "H5P.TrueFalse 1.8", "params": {"metadata": {"title": "Water Quiz"}, "params": {"question": "Is water wet?", "correct": "true"}}}` +
	"\n```"

const invalidReply = "Let me think about that a bit more before I produce anything."

type testEnv struct {
	orchestrator *Orchestrator
	sessions     *fakeSessionRepo
	turns        *fakeTurnRepo
	model        *scriptedModel
	submitter    *fakeSubmitter
}

func newTestEnv(model *scriptedModel) *testEnv {
	registry := schema.NewRegistry()
	sessions := newFakeSessionRepo()
	turns := &fakeTurnRepo{}
	submitter := &fakeSubmitter{result: &port.SubmissionResult{
		ContentID:   "42",
		PreviewURL:  "http://h5p.example/h5p/play/42",
		DownloadURL: "http://h5p.example/h5p/download/42",
	}}
	orchestrator := NewOrchestrator(
		sessions,
		turns,
		passthroughTx{},
		&fakeFactory{model: model},
		submitter,
		&fakeCatalog{versions: entity.VersionMap{"H5P.TrueFalse": "1.8"}},
		wfprompt.NewComposer(registry),
		registry,
		&config.GenerationConfig{MaxRetries: 2, RetryDelay: time.Millisecond},
	)
	return &testEnv{
		orchestrator: orchestrator,
		sessions:     sessions,
		turns:        turns,
		model:        model,
		submitter:    submitter,
	}
}

func startedSession(t *testing.T, env *testEnv, stage entity.Stage, library string) *entity.ConversationSession {
	t.Helper()
	session, err := env.orchestrator.StartSession(context.Background(), "")
	require.NoError(t, err)
	if stage != entity.StageSelecting || library != "" {
		session.Stage = stage
		session.SelectedLibrary = library
		require.NoError(t, env.sessions.Update(context.Background(), session))
	}
	return session
}

// ---- 测试 ----

func TestHandleMessage_SelectionRecordsContentType(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{
		"For a quick yes/no check I recommend H5P.TrueFalse here.",
	}})
	session := startedSession(t, env, entity.StageSelecting, "")

	result, err := env.orchestrator.HandleMessage(context.Background(), session.ID, "I want a quick quiz about water", "")
	require.NoError(t, err)

	// 命中选型只做记录，生成要等显式的 generate 操作
	assert.Equal(t, entity.StageSelecting, result.Session.Stage)
	assert.Equal(t, "H5P.TrueFalse", result.Session.SelectedLibrary)
	assert.True(t, result.Session.ReadyToGenerate())
	assert.Nil(t, result.Document)
	assert.Nil(t, result.Submission)
	assert.Equal(t, 1, env.model.calls)
	assert.Zero(t, env.submitter.calls)
}

func TestHandleMessage_SelectionCanBeRevised(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{
		"I recommend H5P.TrueFalse here.",
		"Given the four options you mention, I recommend H5P.MultiChoice instead.",
	}})
	session := startedSession(t, env, entity.StageSelecting, "")

	_, err := env.orchestrator.HandleMessage(context.Background(), session.ID, "A quick quiz about water", "")
	require.NoError(t, err)

	// 生成触发前仍可继续澄清并改选
	result, err := env.orchestrator.HandleMessage(context.Background(), session.ID, "Actually there are four answer options", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StageSelecting, result.Session.Stage)
	assert.Equal(t, "H5P.MultiChoice", result.Session.SelectedLibrary)
}

func TestGenerate_AfterSelection(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{validTrueFalseReply}})
	session := startedSession(t, env, entity.StageSelecting, "H5P.TrueFalse")

	result, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.NoError(t, err)

	assert.Equal(t, entity.StageRefining, result.Session.Stage)
	require.NotNil(t, result.Document)
	assert.Equal(t, "H5P.TrueFalse", result.Document.MachineName())
	require.NotNil(t, result.Submission)
	assert.Equal(t, "42", result.Submission.ContentID)
	assert.Equal(t, 1, env.model.calls)
	assert.Equal(t, 1, env.submitter.calls)
	assert.NotEmpty(t, result.Session.LastDocument)
	require.NotNil(t, result.Session.LastContentID)
	assert.Equal(t, "42", *result.Session.LastContentID)
}

func TestGenerate_RequiresSelectedType(t *testing.T) {
	env := newTestEnv(&scriptedModel{})
	session := startedSession(t, env, entity.StageSelecting, "")

	_, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStageViolation))
	assert.Zero(t, env.model.calls)
}

func TestGenerate_RejectedDuringRefining(t *testing.T) {
	env := newTestEnv(&scriptedModel{})
	session := startedSession(t, env, entity.StageRefining, "H5P.TrueFalse")

	_, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStageViolation))
	assert.Zero(t, env.model.calls)
}

func TestHandleMessage_SelectionStaysWhenUndecided(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{
		"Could you tell me whether learners should pick from several options?",
	}})
	session := startedSession(t, env, entity.StageSelecting, "")

	result, err := env.orchestrator.HandleMessage(context.Background(), session.ID, "I want something interactive", "")
	require.NoError(t, err)

	assert.Equal(t, entity.StageSelecting, result.Session.Stage)
	assert.Empty(t, result.Session.SelectedLibrary)
	assert.Nil(t, result.Document)
	assert.Equal(t, 1, env.model.calls)
	assert.Zero(t, env.submitter.calls)

	// 用户消息与澄清回复都已落库
	turns, err := env.turns.ListAllBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, entity.RoleUser, turns[0].Role)
	assert.Equal(t, entity.RoleAssistant, turns[1].Role)
}

func TestGenerate_RetryAfterInvalidDocument(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{invalidReply, validTrueFalseReply}})
	session := startedSession(t, env, entity.StageSelecting, "H5P.TrueFalse")

	result, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.NoError(t, err)

	assert.Equal(t, entity.StageRefining, result.Session.Stage)
	assert.Equal(t, 2, env.model.calls)
	// 重试提示整个回合只出现一次
	require.Len(t, result.Notices, 1)
	assert.Equal(t, retryNotice, result.Notices[0])
	require.NotNil(t, result.Submission)
}

func TestGenerate_RetryBudgetExhausted(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{invalidReply}})
	session := startedSession(t, env, entity.StageSelecting, "H5P.TrueFalse")

	_, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeGenerationExceeded))

	// MaxRetries=2 意味着最多 3 次尝试
	assert.Equal(t, 3, env.model.calls)
	assert.Zero(t, env.submitter.calls)

	// 失败后会话留在选型阶段且保留选型，可以直接重新触发生成
	stored, err := env.sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StageSelecting, stored.Stage)
	assert.Equal(t, "H5P.TrueFalse", stored.SelectedLibrary)
}

func TestGenerate_ProviderErrorNotRetried(t *testing.T) {
	env := newTestEnv(&scriptedModel{err: errors.New(errors.CodeProviderError, "模型网关调用失败")})
	session := startedSession(t, env, entity.StageSelecting, "H5P.TrueFalse")

	_, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeProviderError))
	assert.Equal(t, 1, env.model.calls)
}

func TestGenerate_SubmissionRejectedIsRetried(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{validTrueFalseReply}})
	env.submitter.err = errors.New(errors.CodeSubmissionRejected, "托管服务拒绝了文档").WithDetail("params.question missing")
	session := startedSession(t, env, entity.StageSelecting, "H5P.TrueFalse")

	_, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeGenerationExceeded))
	assert.Equal(t, 3, env.submitter.calls)
}

func TestGenerate_SubmissionUnavailableIsRetried(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{validTrueFalseReply}})
	env.submitter.err = errors.New(errors.CodeSubmissionUnavailable, "托管服务不可用")
	session := startedSession(t, env, entity.StageSelecting, "H5P.TrueFalse")

	_, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeGenerationExceeded))
	assert.True(t, errors.HasCode(err, errors.CodeSubmissionUnavailable))
	assert.Equal(t, 3, env.submitter.calls)
}

func TestGenerate_SubmissionTimeoutIsRetried(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{validTrueFalseReply}})
	env.submitter.err = errors.New(errors.CodeSubmissionTimeout, "提交托管服务超时")
	session := startedSession(t, env, entity.StageSelecting, "H5P.TrueFalse")

	_, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeGenerationExceeded))
	assert.True(t, errors.HasCode(err, errors.CodeSubmissionTimeout))
	assert.Equal(t, 3, env.submitter.calls)
}

func TestHandleMessage_RefiningAllowsPlainReply(t *testing.T) {
	env := newTestEnv(&scriptedModel{replies: []string{
		"The quiz currently asks whether water is wet, with the correct answer set to true.",
	}})
	session := startedSession(t, env, entity.StageRefining, "H5P.TrueFalse")
	session.LastDocument = json.RawMessage(`{"library": "H5P.TrueFalse 1.8", "params": {"metadata": {"title": "Water Quiz"}, "params": {"question": "Is water wet?", "correct": "true"}}}`)
	require.NoError(t, env.sessions.Update(context.Background(), session))

	result, err := env.orchestrator.HandleMessage(context.Background(), session.ID, "What does the quiz ask?", "")
	require.NoError(t, err)

	// 没有文档块的回复按普通对话处理，不触发重试
	assert.Equal(t, entity.StageRefining, result.Session.Stage)
	assert.NotEmpty(t, result.Reply)
	assert.Nil(t, result.Document)
	assert.Nil(t, result.Submission)
	assert.Equal(t, 1, env.model.calls)
	assert.Zero(t, env.submitter.calls)
}

func TestHandleMessage_SessionNotFound(t *testing.T) {
	env := newTestEnv(&scriptedModel{})

	_, err := env.orchestrator.HandleMessage(context.Background(), "no-such-id", "hello", "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeSessionNotFound))
}

func TestGenerate_MismatchedContentTypeIsRetried(t *testing.T) {
	// 模型给出了与会话选型不同的内容类型
	mismatched := "```json\n" +
		`{"library": "H5P.TrueFalse 1.8", "params": {"metadata": {"title": "T"}, "params": {"question": "Q", "correct": "true"}}}` +
		"\n```"
	env := newTestEnv(&scriptedModel{replies: []string{mismatched}})
	session := startedSession(t, env, entity.StageSelecting, "H5P.MultiChoice")

	_, err := env.orchestrator.Generate(context.Background(), session.ID, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeGenerationExceeded))
	assert.Equal(t, 3, env.model.calls)
}
