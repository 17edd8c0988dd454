// Package report 把订单簿状态渲染成可读文本。
package report

import (
	"bufio"
	"io"

	"switch-pricer/quote"
)

// Instrument 单个合约的展示快照，Bids/Asks 均为最优在前，包含最优合成价。
type Instrument struct {
	ID   string
	Bids []quote.Quote
	Asks []quote.Quote
}

const rule = "----\n"

// Render 按顺序输出每个合约：
//
//	BOOK <id>:
//	----
//	<bids>
//	----
//	<asks>
//	----
func Render(w io.Writer, books []Instrument) error {
	bw := bufio.NewWriter(w)
	for _, b := range books {
		bw.WriteString("BOOK " + b.ID + ":\n")
		bw.WriteString(rule)
		for _, q := range b.Bids {
			bw.WriteString(q.String() + "\n")
		}
		bw.WriteString(rule)
		for _, q := range b.Asks {
			bw.WriteString(q.String() + "\n")
		}
		bw.WriteString(rule)
	}
	bw.WriteString("\n")
	return bw.Flush()
}
