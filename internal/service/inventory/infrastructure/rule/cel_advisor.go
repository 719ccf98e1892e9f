// internal/service/inventory/infrastructure/rule/cel_advisor.go
package rule

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"stockpile/internal/service/inventory/domain"
)

// 默认规则，与库存档案上的阈值语义一致。
// 运维可以通过配置中心下发更复杂的表达式，例如叠加仓库维度:
//
//	available <= reorderPoint && warehouse == "MAIN"
const (
	DefaultLowStockRule = `available <= minStock`
	DefaultReorderRule  = `available <= reorderPoint`
)

// CELAdvisor 用 CEL 表达式评估库存告警规则。
// 表达式在构造时编译一次，评估是纯计算，可以并发调用。
type CELAdvisor struct {
	lowStock cel.Program
	reorder  cel.Program
}

// NewCELAdvisor 编译低库存与补货两条规则表达式。
func NewCELAdvisor(lowStockRule, reorderRule string) (*CELAdvisor, error) {
	env, err := cel.NewEnv(
		cel.Variable("productId", cel.StringType),
		cel.Variable("warehouse", cel.StringType),
		cel.Variable("onHand", cel.IntType),
		cel.Variable("reserved", cel.IntType),
		cel.Variable("available", cel.IntType),
		cel.Variable("minStock", cel.IntType),
		cel.Variable("maxStock", cel.IntType),
		cel.Variable("reorderPoint", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	lowStock, err := compile(env, lowStockRule)
	if err != nil {
		return nil, fmt.Errorf("compile low-stock rule: %w", err)
	}
	reorder, err := compile(env, reorderRule)
	if err != nil {
		return nil, fmt.Errorf("compile reorder rule: %w", err)
	}
	return &CELAdvisor{lowStock: lowStock, reorder: reorder}, nil
}

func compile(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	return env.Program(ast)
}

// Advice 是对单个商品评估后的告警建议。
type Advice struct {
	ProductID       string `json:"productId"`
	LowStock        bool   `json:"lowStock"`
	SuggestReorder  bool   `json:"suggestReorder"`
	ReorderQuantity int    `json:"reorderQuantity,omitempty"`
}

// Evaluate 对一条库存档案评估两条规则。
func (a *CELAdvisor) Evaluate(item *domain.InventoryItem) (*Advice, error) {
	fact := map[string]interface{}{
		"productId":    item.ProductID,
		"warehouse":    item.WarehouseLocation,
		"onHand":       int64(item.QuantityOnHand),
		"reserved":     int64(item.QuantityReserved),
		"available":    int64(item.QuantityAvailable),
		"minStock":     int64(item.MinStockLevel),
		"maxStock":     int64(item.MaxStockLevel),
		"reorderPoint": int64(item.ReorderPoint),
	}

	low, err := evalBool(a.lowStock, fact)
	if err != nil {
		return nil, fmt.Errorf("evaluate low-stock rule: %w", err)
	}
	reorder, err := evalBool(a.reorder, fact)
	if err != nil {
		return nil, fmt.Errorf("evaluate reorder rule: %w", err)
	}

	advice := &Advice{ProductID: item.ProductID, LowStock: low, SuggestReorder: reorder}
	if reorder {
		advice.ReorderQuantity = item.ReorderQuantity
	}
	return advice, nil
}

func evalBool(prog cel.Program, fact map[string]interface{}) (bool, error) {
	out, _, err := prog.Eval(fact)
	if err != nil {
		return false, err
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("unexpected result type %T", out.Value())
	}
	return result, nil
}
