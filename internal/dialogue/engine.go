package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"tendero/internal/ai"
	"tendero/internal/model"
)

// ProductLister 商品目录读取接口
type ProductLister interface {
	ListByTenant(ctx context.Context, tenantID string, limit int64) ([]*model.Product, error)
}

// AffirmationFallback 模糊回复的模型分类兜底
type AffirmationFallback interface {
	ClassifyAffirmation(ctx context.Context, text string) (string, float64, error)
}

// Recovery 状态缓存未命中时从消息元数据重建
type Recovery interface {
	LastDialogueMetadata(ctx context.Context, conversationID string) (map[string]any, error)
}

// 单次匹配扫描的目录上限
const catalogScanLimit = 500

// Engine 购买会话状态机
// 按对话 ID 寻址状态；购物车变更先完整施加到本地副本，
// Put 成功后转移才算提交，不存在半施加状态
type Engine struct {
	store         Store
	products      ProductLister
	matcher       *Matcher
	fallback      AffirmationFallback // 可为 nil
	recovery      Recovery            // 可为 nil
	minConfidence float64
}

// NewEngine 创建状态机
func NewEngine(store Store, products ProductLister, matcher *Matcher, fallback AffirmationFallback, recovery Recovery, minConfidence float64) *Engine {
	return &Engine{
		store:         store,
		products:      products,
		matcher:       matcher,
		fallback:      fallback,
		recovery:      recovery,
		minConfidence: minConfidence,
	}
}

// StepInput 一次用户回合的输入
type StepInput struct {
	ConversationID string
	TenantID       string
	Text           string
	Intent         ai.Intent
}

// StepResult 状态机的处理结果
// Handled 为 false 表示本回合不属于购买流程，由上层走常规问答路径
type StepResult struct {
	Reply            string
	Handled          bool
	Stage            Stage
	Cart             *model.CartSnapshot
	RedirectCheckout bool
	Metadata         map[string]any
}

// Active 判断对话是否存在进行中的购买流程
func (e *Engine) Active(ctx context.Context, conversationID string) bool {
	state, err := e.loadState(ctx, conversationID)
	if err != nil || state == nil {
		return false
	}
	return !state.Terminal()
}

// Step 处理一个用户回合
func (e *Engine) Step(ctx context.Context, in StepInput) (*StepResult, error) {
	state, err := e.loadState(ctx, in.ConversationID)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", in.ConversationID).
			Msg("failed to load dialogue state, starting fresh")
		state = nil
	}

	if state == nil || state.Terminal() {
		if !in.Intent.IsPurchaseFlow() {
			return &StepResult{Handled: false}, nil
		}
		state = NewState(in.ConversationID, in.TenantID)
	}

	// 显式取消在任何阶段生效
	if state.Stage != StageIdle && IsCancel(in.Text) {
		state.Stage = StageCancelled
		state.Pending = nil
		state.Cart = nil
		return e.commit(ctx, state, &StepResult{
			Reply:   "He cancelado el proceso de compra. Aquí estoy si necesitas algo más.",
			Handled: true,
		})
	}

	switch state.Stage {
	case StageIdle:
		return e.stepIdle(ctx, state, in)
	case StageAwaitingProduct:
		return e.stepAwaitingProduct(ctx, state, in)
	case StageCartOpen:
		return e.stepCartOpen(ctx, state, in)
	case StageAwaitingCheckout:
		return e.stepAwaitingCheckout(ctx, state, in)
	default:
		// 未知阶段按不一致处理：软复位到 idle 并追问，不崩溃
		log.Warn().Str("stage", string(state.Stage)).Msg("unexpected dialogue stage, resetting")
		state.Stage = StageIdle
		state.Pending = nil
		return e.commit(ctx, state, &StepResult{
			Reply:   "Parece que no tenemos una compra en curso. ¿Qué producto te interesa?",
			Handled: true,
		})
	}
}

// stepIdle 空闲阶段：购买意图 + 解析出商品 → 请求确认；解析不出 → 追问商品名
// 未解析出商品时阶段保持 idle，绝不发生状态转移
func (e *Engine) stepIdle(ctx context.Context, state *State, in StepInput) (*StepResult, error) {
	switch in.Intent {
	case ai.IntentProductInquiry:
		// 商品咨询走知识检索问答，即便话术里出现了商品名
		return &StepResult{Handled: false, Stage: state.Stage}, nil
	case ai.IntentCart:
		return e.commit(ctx, state, &StepResult{
			Reply:   "Tu carrito está vacío por ahora. Dime qué producto te interesa y te ayudo.",
			Handled: true,
		})
	case ai.IntentCheckout:
		// 无购物车却要结算：不一致，追问而不是报错
		return e.commit(ctx, state, &StepResult{
			Reply:   "Todavía no tienes productos en el carrito. ¿Qué te gustaría comprar?",
			Handled: true,
		})
	}

	products, err := e.products.ListByTenant(ctx, in.TenantID, catalogScanLimit)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", in.TenantID).Msg("catalog lookup failed")
		return e.commit(ctx, state, &StepResult{
			Reply:   "Ahora mismo no puedo consultar el catálogo. Inténtalo de nuevo en un momento.",
			Handled: true,
		})
	}

	best, score := e.matcher.Best(in.Text, products)
	if best == nil {
		if in.Intent != ai.IntentPurchase {
			// 没有明确的购买意图也没解析出商品，交回常规问答路径
			return &StepResult{Handled: false, Stage: state.Stage}, nil
		}
		return e.commit(ctx, state, &StepResult{
			Reply:   "¿Qué producto te gustaría comprar? Dime el nombre y lo busco en el catálogo.",
			Handled: true,
		})
	}

	log.Debug().Str("product_id", best.ID).Float64("score", score).Msg("product resolved for purchase intent")

	state.Pending = &PendingProduct{ProductID: best.ID, Name: best.Name, Price: best.Price}
	state.Stage = StageAwaitingProduct
	return e.commit(ctx, state, &StepResult{
		Reply:   fmt.Sprintf("Encontré %s ($%.2f). ¿Lo agrego a tu carrito?", best.Name, best.Price),
		Handled: true,
	})
}

// stepAwaitingProduct 等待加购确认
func (e *Engine) stepAwaitingProduct(ctx context.Context, state *State, in StepInput) (*StepResult, error) {
	if state.Pending == nil {
		// 有待确认阶段却没有待确认商品：软复位
		state.Stage = StageIdle
		return e.commit(ctx, state, &StepResult{
			Reply:   "Perdí el producto que estábamos confirmando. ¿Cuál te interesa?",
			Handled: true,
		})
	}

	switch e.classify(ctx, in.Text) {
	case VerdictAffirmative:
		pending := *state.Pending
		state.AddToCart(pending, 1)
		state.Pending = nil
		state.Stage = StageCartOpen
		return e.commit(ctx, state, &StepResult{
			Reply:   fmt.Sprintf("Listo, agregué %s a tu carrito. ¿Quieres ver el carrito o seguir comprando?", pending.Name),
			Handled: true,
			Cart:    state.CartSnapshot(),
		})
	case VerdictNegative:
		state.Pending = nil
		state.Stage = StageIdle
		return e.commit(ctx, state, &StepResult{
			Reply:   "De acuerdo, no lo agrego. ¿Te ayudo a buscar otro producto?",
			Handled: true,
		})
	default:
		return e.commit(ctx, state, &StepResult{
			Reply:   fmt.Sprintf("Perdona, no te entendí. ¿Agrego %s al carrito? Responde sí o no.", state.Pending.Name),
			Handled: true,
		})
	}
}

// stepCartOpen 购物车开启阶段
func (e *Engine) stepCartOpen(ctx context.Context, state *State, in StepInput) (*StepResult, error) {
	switch {
	case in.Intent == ai.IntentCheckout:
		if len(state.Cart) == 0 {
			state.Stage = StageIdle
			return e.commit(ctx, state, &StepResult{
				Reply:   "Tu carrito está vacío. ¿Qué producto te gustaría comprar?",
				Handled: true,
			})
		}
		state.Stage = StageAwaitingCheckout
		snapshot := state.CartSnapshot()
		return e.commit(ctx, state, &StepResult{
			Reply:   fmt.Sprintf("El total de tu pedido es $%.2f. ¿Confirmas la compra?", snapshot.Total),
			Handled: true,
			Cart:    snapshot,
		})

	case in.Intent == ai.IntentCart || wantsCartView(in.Text):
		return e.commit(ctx, state, &StepResult{
			Reply:   renderCart(state),
			Handled: true,
			Cart:    state.CartSnapshot(),
		})

	case in.Intent == ai.IntentPurchase:
		// 继续加购：回到商品解析
		return e.stepIdle(ctx, state, in)

	default:
		// 购买流程之外的问题交回常规问答路径，购物车保持开启
		return &StepResult{Handled: false, Stage: state.Stage, Cart: state.CartSnapshot()}, nil
	}
}

// stepAwaitingCheckout 等待结算确认
func (e *Engine) stepAwaitingCheckout(ctx context.Context, state *State, in StepInput) (*StepResult, error) {
	snapshot := state.CartSnapshot()

	switch e.classify(ctx, in.Text) {
	case VerdictAffirmative:
		state.Stage = StageCompleted
		return e.commit(ctx, state, &StepResult{
			Reply:            "¡Perfecto! Te llevo al pago para completar tu pedido.",
			Handled:          true,
			Cart:             snapshot,
			RedirectCheckout: true,
		})
	case VerdictNegative:
		state.Stage = StageCartOpen
		return e.commit(ctx, state, &StepResult{
			Reply:   "Sin problema, tu carrito sigue abierto. ¿Quieres agregar algo más o pagar?",
			Handled: true,
			Cart:    snapshot,
		})
	default:
		return e.commit(ctx, state, &StepResult{
			Reply:   fmt.Sprintf("¿Confirmas la compra por $%.2f? Responde sí o no.", snapshot.Total),
			Handled: true,
			Cart:    snapshot,
		})
	}
}

// classify 词表优先，模糊时走模型兜底；兜底置信度不足按 unclear 处理
func (e *Engine) classify(ctx context.Context, text string) Verdict {
	verdict := ClassifyReply(text)
	if verdict != VerdictUnclear || e.fallback == nil {
		return verdict
	}

	label, confidence, err := e.fallback.ClassifyAffirmation(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("affirmation fallback failed")
		return VerdictUnclear
	}
	if confidence < e.minConfidence {
		return VerdictUnclear
	}

	switch label {
	case "affirmative":
		return VerdictAffirmative
	case "negative":
		return VerdictNegative
	default:
		return VerdictUnclear
	}
}

// commit 提交状态转移并镜像到结果元数据
// 终止态直接清除缓存；提交失败时不返回半应用的结果
func (e *Engine) commit(ctx context.Context, state *State, result *StepResult) (*StepResult, error) {
	if state.Terminal() {
		if err := e.store.Delete(ctx, state.ConversationID); err != nil {
			log.Warn().Err(err).Msg("failed to clear dialogue state")
		}
	} else {
		if err := e.store.Put(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to persist dialogue state: %w", err)
		}
	}

	result.Stage = state.Stage
	result.Metadata = state.Metadata()
	return result, nil
}

// loadState 读取状态；缓存未命中时从最近一条结构化消息的元数据尽力重建
func (e *Engine) loadState(ctx context.Context, conversationID string) (*State, error) {
	state, err := e.store.Get(ctx, conversationID)
	if err != nil || state != nil {
		return state, err
	}

	if e.recovery == nil {
		return nil, nil
	}

	md, err := e.recovery.LastDialogueMetadata(ctx, conversationID)
	if err != nil || md == nil {
		return nil, nil
	}

	recovered, ok := StateFromMetadata(md)
	if !ok || recovered.Terminal() {
		return nil, nil
	}

	log.Info().Str("conversation_id", conversationID).Str("stage", string(recovered.Stage)).
		Msg("dialogue state recovered from message metadata")
	return recovered, nil
}

// wantsCartView 购物车查看关键词
func wantsCartView(text string) bool {
	normalized := strings.ToLower(text)
	for _, kw := range []string{"ver carrito", "ver el carrito", "mi carrito", "view cart", "my cart", "show cart"} {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// renderCart 生成购物车文本快照
func renderCart(state *State) string {
	if len(state.Cart) == 0 {
		return "Tu carrito está vacío. ¿Qué producto te gustaría agregar?"
	}

	var b strings.Builder
	b.WriteString("Esto es lo que llevas en tu carrito:\n")
	var total float64
	for _, item := range state.Cart {
		subtotal := item.Price * float64(item.Quantity)
		total += subtotal
		fmt.Fprintf(&b, "• %s x%d — $%.2f\n", item.Name, item.Quantity, subtotal)
	}
	fmt.Fprintf(&b, "Total: $%.2f. ¿Quieres pagar o seguir comprando?", total)
	return b.String()
}
