package model

import "errors"

var (
	// ErrNoContractFound 没有可交易的当季合约
	ErrNoContractFound = errors.New("no current-quarter contract found")
	// ErrNoNextContractFound 没有可展期的次季合约
	ErrNoNextContractFound = errors.New("no next-quarter contract found")
	// ErrMetadataUnavailable 合约元数据（步长）不可用
	ErrMetadataUnavailable = errors.New("contract metadata unavailable")
	// ErrGatewayTimeout 交易所调用超时
	ErrGatewayTimeout = errors.New("gateway timeout")
	// ErrGatewayUnavailable 交易所调用失败
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrInvalidStateTransition 非法状态转换（平仓已平仓位、展期已平仓位）
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrPersistenceFailure 持久化失败
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrPartialExecution 第一腿已成交、第二腿失败，需要人工对账
	ErrPartialExecution = errors.New("partial execution: manual reconciliation required")
	// ErrPositionNotFound 持仓不存在
	ErrPositionNotFound = errors.New("position not found")
	// ErrInvalidNotional 名义金额必须大于 0
	ErrInvalidNotional = errors.New("notional must be positive")
	// ErrInvalidQuantityInput 数量计算输入非法
	ErrInvalidQuantityInput = errors.New("invalid quantity input")
	// ErrQuantityBelowStep 按步长向下取整后数量为 0
	ErrQuantityBelowStep = errors.New("quantity below lot step")
)
