package checker

import (
	"github.com/tangzhangming/lowir/internal/ast"
)

// ============================================================================
// 可达性分析
// ============================================================================
//
// 按 JLS 14.22 的简化规则判断语句能否正常结束，用于检测缺失的 return。
// 循环条件只把字面量 true 视为常量真。
//
// ============================================================================

// canCompleteNormally 判断语句执行后能否继续执行下一条语句
func canCompleteNormally(stmt ast.Statement) bool {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		for _, inner := range s.Statements {
			if !canCompleteNormally(inner) {
				return false
			}
		}
		return true

	case *ast.ReturnStmt:
		return false

	case *ast.BreakStmt, *ast.ContinueStmt:
		return false

	case *ast.IfStmt:
		if s.Else == nil {
			return true
		}
		return canCompleteNormally(s.Then) || canCompleteNormally(s.Else)

	case *ast.WhileStmt:
		return !isConstTrue(s.Condition) || hasBreak(s.Body)

	case *ast.DoWhileStmt:
		if hasBreak(s.Body) {
			return true
		}
		if isConstTrue(s.Condition) {
			return false
		}
		return canCompleteNormally(s.Body) || hasContinue(s.Body)

	case *ast.ForStmt:
		if s.Condition != nil && !isConstTrue(s.Condition) {
			return true
		}
		return hasBreak(s.Body)

	default:
		return true
	}
}

func isConstTrue(e ast.Expression) bool {
	lit, ok := e.(*ast.BoolLiteral)
	return ok && lit.Value
}

// hasBreak 检查语句中是否存在跳出当前循环的 break
//
// 不进入嵌套循环：嵌套循环中的 break 只跳出内层循环。
func hasBreak(stmt ast.Statement) bool {
	return findJump(stmt, func(s ast.Statement) bool {
		_, ok := s.(*ast.BreakStmt)
		return ok
	})
}

// hasContinue 检查语句中是否存在作用于当前循环的 continue
func hasContinue(stmt ast.Statement) bool {
	return findJump(stmt, func(s ast.Statement) bool {
		_, ok := s.(*ast.ContinueStmt)
		return ok
	})
}

func findJump(stmt ast.Statement, match func(ast.Statement) bool) bool {
	if match(stmt) {
		return true
	}
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		for _, inner := range s.Statements {
			if findJump(inner, match) {
				return true
			}
		}
	case *ast.IfStmt:
		if findJump(s.Then, match) {
			return true
		}
		if s.Else != nil {
			return findJump(s.Else, match)
		}
	}
	return false
}
