// Package generation 实现内容创建会话的编排逻辑
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pascalkienast/H5P-AI-Generator/internal/config"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/repository"
	"github.com/pascalkienast/H5P-AI-Generator/internal/schema"
	"github.com/pascalkienast/H5P-AI-Generator/internal/workflow/node"
	"github.com/pascalkienast/H5P-AI-Generator/internal/workflow/port"
	wfprompt "github.com/pascalkienast/H5P-AI-Generator/internal/workflow/prompt"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/logger"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/metrics"
)

// retryNotice 首次失败后向用户展示的提示，整个回合只出现一次
const retryNotice = "The generated document did not pass validation. Retrying automatically..."

// TurnResult 一次用户消息处理的结果
type TurnResult struct {
	Session *entity.ConversationSession
	// Reply 助手回复全文
	Reply string
	// Notices 过程提示，如自动重试通知
	Notices []string
	// Document 本回合产出的内容文档，未生成时为 nil
	Document *entity.ContentDocument
	// Submission 提交成功后的托管服务结果
	Submission *port.SubmissionResult
}

// Orchestrator 会话编排器
//
// 每个会话按 选型 -> 生成 -> 修订 的阶段推进。模型调用放在
// 数据库事务之外：前置事务落库用户消息并取出全量历史，
// 后置事务写回阶段变更与助手消息
type Orchestrator struct {
	sessions  repository.ConversationSessionRepository
	turns     repository.ConversationTurnRepository
	tx        repository.Transactor
	factory   port.ChatModelFactory
	submitter port.ContentSubmitter
	catalog   port.LibraryCatalog
	composer  *wfprompt.Composer
	registry  *schema.Registry

	maxRetries int
	retryDelay time.Duration
}

// NewOrchestrator 创建会话编排器
func NewOrchestrator(
	sessions repository.ConversationSessionRepository,
	turns repository.ConversationTurnRepository,
	tx repository.Transactor,
	factory port.ChatModelFactory,
	submitter port.ContentSubmitter,
	catalog port.LibraryCatalog,
	composer *wfprompt.Composer,
	registry *schema.Registry,
	cfg *config.GenerationConfig,
) *Orchestrator {
	return &Orchestrator{
		sessions:   sessions,
		turns:      turns,
		tx:         tx,
		factory:    factory,
		submitter:  submitter,
		catalog:    catalog,
		composer:   composer,
		registry:   registry,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// StartSession 创建新会话，provider 为空时使用默认提供商
func (o *Orchestrator) StartSession(ctx context.Context, provider string) (*entity.ConversationSession, error) {
	if _, err := o.factory.Get(ctx, provider); err != nil {
		return nil, err
	}

	session := entity.NewConversationSession(provider)
	session.ID = uuid.NewString()
	if err := o.sessions.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternalError, "创建会话失败")
	}

	logger.Info(ctx, "会话已创建", "session_id", session.ID, "provider", provider)
	return session, nil
}

// GetSession 查询会话
func (o *Orchestrator) GetSession(ctx context.Context, id string) (*entity.ConversationSession, error) {
	session, err := o.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternalError, "加载会话失败")
	}
	if session == nil {
		return nil, errors.New(errors.CodeSessionNotFound, "会话不存在").WithDetail(id)
	}
	return session, nil
}

// ListTurns 分页查询会话历史消息
func (o *Orchestrator) ListTurns(ctx context.Context, sessionID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ConversationTurn], error) {
	if _, err := o.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return o.turns.ListBySession(ctx, sessionID, pagination)
}

// HandleMessage 处理一条用户消息并推进会话状态机
//
// provider 非空时仅对本次调用覆盖会话的提供商
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, text, provider string) (*TurnResult, error) {
	ctx = context.WithValue(ctx, logger.SessionIDKey, sessionID)

	// 前置事务：锁定会话、落库用户消息并取出全量历史
	var session *entity.ConversationSession
	var history []entity.Message
	err := o.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		s, err := o.sessions.GetByIDForUpdate(txCtx, sessionID)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternalError, "加载会话失败")
		}
		if s == nil {
			return errors.New(errors.CodeSessionNotFound, "会话不存在").WithDetail(sessionID)
		}
		if err := o.turns.Create(txCtx, entity.NewConversationTurn(s.ID, entity.RoleUser, text, nil)); err != nil {
			return errors.Wrap(err, errors.CodeInternalError, "保存用户消息失败")
		}
		turns, err := o.turns.ListAllBySession(txCtx, s.ID)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternalError, "加载会话历史失败")
		}
		session = s
		history = entity.MessagesFromTurns(turns)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if provider == "" {
		provider = session.Provider
	}

	// 模型调用与提交都在事务之外进行，避免长事务占用连接
	out := o.advance(ctx, session, history, provider)

	return o.persistOutcome(ctx, sessionID, out)
}

// Generate 触发内容生成，是独立于聊天消息的显式操作
//
// 要求会话处于选型阶段且已确定内容类型。成功后进入修订阶段；
// 失败时阶段与选型保持不变，用户可以继续澄清或重新触发生成
func (o *Orchestrator) Generate(ctx context.Context, sessionID, provider string) (*TurnResult, error) {
	ctx = context.WithValue(ctx, logger.SessionIDKey, sessionID)

	// 前置事务：锁定会话、校验阶段并取出全量历史
	var session *entity.ConversationSession
	var history []entity.Message
	err := o.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		s, err := o.sessions.GetByIDForUpdate(txCtx, sessionID)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternalError, "加载会话失败")
		}
		if s == nil {
			return errors.New(errors.CodeSessionNotFound, "会话不存在").WithDetail(sessionID)
		}
		if s.Stage != entity.StageSelecting {
			return errors.New(errors.CodeStageViolation, "当前阶段不接受生成操作").WithDetail(string(s.Stage))
		}
		if !s.ReadyToGenerate() {
			return errors.New(errors.CodeStageViolation, "会话尚未确定内容类型")
		}
		turns, err := o.turns.ListAllBySession(txCtx, s.ID)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternalError, "加载会话历史失败")
		}
		session = s
		history = entity.MessagesFromTurns(turns)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if provider == "" {
		provider = session.Provider
	}

	out := &outcome{stage: session.Stage, selectedLibrary: session.SelectedLibrary}
	if model, err := o.factory.Get(ctx, provider); err != nil {
		out.err = err
	} else {
		genCtx := context.WithValue(ctx, logger.StageKey, string(entity.StageGenerating))
		o.generate(genCtx, model, session, session.SelectedLibrary, history, out)
	}

	return o.persistOutcome(ctx, sessionID, out)
}

// persistOutcome 后置事务：写回阶段变更与助手消息
// 生成失败时同样落库，会话保持可用
func (o *Orchestrator) persistOutcome(ctx context.Context, sessionID string, out *outcome) (*TurnResult, error) {
	var session *entity.ConversationSession
	txErr := o.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		s, err := o.sessions.GetByIDForUpdate(txCtx, sessionID)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternalError, "加载会话失败")
		}
		if s == nil {
			return errors.New(errors.CodeSessionNotFound, "会话不存在").WithDetail(sessionID)
		}

		s.Stage = out.stage
		if out.selectedLibrary != "" {
			s.SelectedLibrary = out.selectedLibrary
		}
		if out.document != nil {
			raw, err := json.Marshal(out.document)
			if err != nil {
				return errors.Wrap(err, errors.CodeInternalError, "序列化内容文档失败")
			}
			s.LastDocument = raw
		}
		if out.submission != nil {
			s.LastContentID = &out.submission.ContentID
		}
		if err := o.sessions.Update(txCtx, s); err != nil {
			return errors.Wrap(err, errors.CodeInternalError, "更新会话失败")
		}

		if out.reply != "" {
			if err := o.turns.Create(txCtx, entity.NewConversationTurn(s.ID, entity.RoleAssistant, out.reply, assistantMetadata(out))); err != nil {
				return errors.Wrap(err, errors.CodeInternalError, "保存助手消息失败")
			}
		}
		session = s
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	if out.err != nil {
		return nil, out.err
	}

	return &TurnResult{
		Session:    session,
		Reply:      out.reply,
		Notices:    out.notices,
		Document:   out.document,
		Submission: out.submission,
	}, nil
}

// outcome 一次状态机推进的全部副作用，统一由后置事务落库
type outcome struct {
	stage           entity.Stage
	selectedLibrary string
	reply           string
	notices         []string
	document        *entity.ContentDocument
	submission      *port.SubmissionResult
	err             error
}

// assistantMetadata 助手消息的附加信息，回放历史时可还原当时的会话状态
func assistantMetadata(out *outcome) json.RawMessage {
	m := map[string]any{"stage": out.stage}
	if out.submission != nil {
		m["content_id"] = out.submission.ContentID
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return raw
}

// advance 按会话阶段分派处理
func (o *Orchestrator) advance(ctx context.Context, session *entity.ConversationSession, history []entity.Message, provider string) *outcome {
	out := &outcome{stage: session.Stage, selectedLibrary: session.SelectedLibrary}

	model, err := o.factory.Get(ctx, provider)
	if err != nil {
		out.err = err
		return out
	}

	ctx = context.WithValue(ctx, logger.StageKey, string(session.Stage))

	switch session.Stage {
	case entity.StageSelecting:
		reply, err := model.Complete(ctx, o.composer.Selection(), history)
		if err != nil {
			out.err = err
			return out
		}
		out.reply = reply

		// 命中后只记录选型，会话仍可继续澄清甚至改选；
		// 真正的生成由显式的 generate 操作触发
		if machineName, ok := node.ExtractContentType(reply, o.supportedNames()); ok {
			logger.Info(ctx, "内容类型已确定", "content_type", machineName)
			out.selectedLibrary = machineName
		}

	case entity.StageRefining:
		o.generate(ctx, model, session, session.SelectedLibrary, history, out)

	default:
		out.err = errors.New(errors.CodeStageViolation, "会话处于未知阶段").WithDetail(string(session.Stage))
	}
	return out
}

// generate 带自动重试的生成流水线：补全 -> 抽取 -> 归一化 -> 校验 -> 提交
func (o *Orchestrator) generate(ctx context.Context, model port.ChatModel, session *entity.ConversationSession, machineName string, history []entity.Message, out *outcome) {
	desc, err := o.registry.Describe(machineName)
	if err != nil {
		out.err = err
		return
	}

	versions, err := o.catalog.Versions(ctx)
	if err != nil {
		out.err = err
		return
	}

	refining := session.Stage == entity.StageRefining && len(session.LastDocument) > 0
	system := o.composer.Generation(desc, versions)
	if refining {
		system = o.composer.Refinement(desc, versions, string(session.LastDocument))
	}

	start := time.Now()
	defer func() {
		metrics.GenerationDuration.WithLabelValues(machineName).Observe(time.Since(start).Seconds())
	}()

	attempts := o.maxRetries + 1
	var lastErr error
	msgs := history
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.GenerationRetriesTotal.WithLabelValues(machineName).Inc()
			select {
			case <-ctx.Done():
				out.err = errors.Wrap(ctx.Err(), errors.CodeProviderTimeout, "生成被取消")
				return
			case <-time.After(o.retryDelay):
			}
		}

		reply, err := model.Complete(ctx, system, msgs)
		if err != nil {
			// 提供商错误不重试，直接上抛
			out.err = err
			return
		}

		// 修订阶段允许纯对话回复：没有文档块就当普通回答处理
		if refining && attempt == 1 && !node.HasDocumentBlock(reply) {
			out.reply = reply
			return
		}

		doc, submission, err := o.buildAndSubmit(ctx, reply, machineName, versions)
		if err == nil {
			metrics.GenerationAttemptsTotal.WithLabelValues(machineName, "ok").Inc()
			out.reply = reply
			out.document = doc
			out.submission = submission
			out.stage = entity.StageRefining
			return
		}

		metrics.GenerationAttemptsTotal.WithLabelValues(machineName, attemptStatus(err)).Inc()
		logger.Warn(ctx, "生成尝试失败",
			"attempt", attempt, "content_type", machineName, "error", err.Error())

		if !retryable(err) {
			out.err = err
			return
		}
		lastErr = err
		if attempt == 1 {
			out.notices = append(out.notices, retryNotice)
		}

		// 文档缺陷把失败原因反馈给模型；瞬时的提交故障原样重试
		if !submissionTransient(err) {
			msgs = append(msgs,
				entity.Message{Role: entity.RoleAssistant, Text: reply},
				entity.Message{Role: entity.RoleUser, Text: correctionMessage(err)},
			)
		}
	}

	out.err = errors.Wrap(lastErr, errors.CodeGenerationExceeded, "自动重试次数已用尽")
}

// buildAndSubmit 单次尝试：抽取文档、归一化、校验并提交到托管服务
func (o *Orchestrator) buildAndSubmit(ctx context.Context, reply, machineName string, versions entity.VersionMap) (*entity.ContentDocument, *port.SubmissionResult, error) {
	raw, err := node.ParseDocument(reply)
	if err != nil {
		return nil, nil, err
	}

	res, err := node.Normalize(raw, versions)
	if err != nil {
		return nil, nil, err
	}
	if res.Repairs > 0 {
		metrics.SubContentIDRepairsTotal.Add(float64(res.Repairs))
		logger.Debug(ctx, "已修复非法 subContentId", "count", res.Repairs)
	}

	doc := res.Document
	if doc.MachineName() != machineName {
		return nil, nil, errors.New(errors.CodeMalformedDocument, "文档的内容类型与会话选型不一致").
			WithDetail(fmt.Sprintf("expected %s, got %s", machineName, doc.MachineName()))
	}

	if err := node.Validate(doc); err != nil {
		return nil, nil, err
	}

	submission, err := o.submitter.Submit(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, submission, nil
}

func (o *Orchestrator) supportedNames() []string {
	types := o.registry.ListSupported()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.MachineName)
	}
	return names
}

// retryable 文档类缺陷可通过重新生成修复，托管服务错误（拒绝、
// 不可达、超时）留给重试间隔消化；提供商错误不重试
func retryable(err error) bool {
	for _, code := range []errors.ErrorCode{
		errors.CodeNoDocumentFound,
		errors.CodeMalformedDocument,
		errors.CodeBadEnvelope,
		errors.CodeIncompleteDocument,
		errors.CodeDanglingReference,
		errors.CodeSubmissionRejected,
		errors.CodeSubmissionUnavailable,
		errors.CodeSubmissionTimeout,
	} {
		if errors.HasCode(err, code) {
			return true
		}
	}
	return false
}

// submissionTransient 托管服务的瞬时故障：文档本身没有问题，
// 重试时不向模型追加纠错反馈
func submissionTransient(err error) bool {
	return errors.HasCode(err, errors.CodeSubmissionUnavailable) ||
		errors.HasCode(err, errors.CodeSubmissionTimeout)
}

// attemptStatus 将尝试失败归类为指标标签
func attemptStatus(err error) string {
	switch {
	case errors.HasCode(err, errors.CodeNoDocumentFound), errors.HasCode(err, errors.CodeMalformedDocument):
		return "extract_failed"
	case errors.HasCode(err, errors.CodeBadEnvelope),
		errors.HasCode(err, errors.CodeIncompleteDocument),
		errors.HasCode(err, errors.CodeDanglingReference):
		return "validate_failed"
	case errors.HasCode(err, errors.CodeSubmissionRejected),
		errors.HasCode(err, errors.CodeSubmissionUnavailable),
		errors.HasCode(err, errors.CodeSubmissionTimeout):
		return "submit_failed"
	default:
		return "error"
	}
}

// correctionMessage 生成发给模型的纠错指令
func correctionMessage(err error) string {
	reason := "the document was invalid"
	if appErr := errors.AsAppError(err); appErr.Detail != "" {
		reason = appErr.Detail
	}
	return fmt.Sprintf(
		"The previous document was rejected (%s). Fix the problem and return the full corrected document in a single ```json fenced block.",
		reason)
}
