package mks

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// toFixed 按二进制精确值保留 prec 位小数，恰为一半时远离零进位
// （与 %.Nf 的银行家舍入不同：0.0625 -> "0.063"）
func toFixed(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) || prec < 0 {
		return strconv.FormatFloat(v, 'f', prec, 64)
	}
	neg := v < 0

	r := new(big.Rat).SetFloat64(math.Abs(v))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(prec)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	r.Add(r, big.NewRat(1, 2))
	n := new(big.Int).Quo(r.Num(), r.Denom())

	digits := n.String()
	if prec > 0 {
		if len(digits) <= prec {
			digits = strings.Repeat("0", prec-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-prec] + "." + digits[len(digits)-prec:]
	}
	if neg {
		return "-" + digits
	}
	return digits
}
