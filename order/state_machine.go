package order

import "fmt"

// transition 状态转换
type transition struct {
	from Status
	to   Status
}

// legal 列出所有合法的状态转换，终态（FILLED, CANCELED, REJECTED, EXPIRED）不出现在 from 中。
var legal = map[transition]bool{
	{StatusPending, StatusNew}:      true,
	{StatusPending, StatusRejected}: true,

	{StatusNew, StatusAck}:       true,
	{StatusNew, StatusPartial}:   true,
	{StatusNew, StatusFilled}:    true,
	{StatusNew, StatusCanceling}: true,
	{StatusNew, StatusCanceled}:  true,
	{StatusNew, StatusRejected}:  true,
	{StatusNew, StatusExpired}:   true,

	{StatusAck, StatusPartial}:   true,
	{StatusAck, StatusFilled}:    true,
	{StatusAck, StatusCanceling}: true,
	{StatusAck, StatusCanceled}:  true,
	{StatusAck, StatusExpired}:   true,

	{StatusPartial, StatusFilled}:    true,
	{StatusPartial, StatusCanceling}: true,
	{StatusPartial, StatusCanceled}:  true,
	{StatusPartial, StatusExpired}:   true,

	{StatusCanceling, StatusCanceled}: true,
	{StatusCanceling, StatusFilled}:   true,
	{StatusCanceling, StatusPartial}:  true,
}

// ValidateTransition 验证状态转换是否合法，相同状态视为幂等。
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !legal[transition{from, to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// IsFinalState 判断是否是终态
func IsFinalState(status Status) bool {
	switch status {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// IsOpen 判断订单是否仍在簿上（可能产生成交、可撤）。
func IsOpen(status Status) bool {
	switch status {
	case StatusNew, StatusAck, StatusPartial, StatusCanceling:
		return true
	default:
		return false
	}
}
