package irfmt

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/tangzhangming/lowir/internal/ir"
	"github.com/tangzhangming/lowir/internal/symbol"
)

// Fingerprint 返回函数文本形式的 BLAKE2b-256 摘要
//
// 两次降级结果相同当且仅当指纹相同，驱动用它检查确定性。
func Fingerprint(tab *symbol.Table, fn *ir.Function) string {
	sum := blake2b.Sum256([]byte(fn.Class + "." + fn.Name + "\n" + Sprint(tab, fn)))
	return hex.EncodeToString(sum[:])
}
