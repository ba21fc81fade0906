package config

type BalanceType string

const (
	Income  BalanceType = "income"
	Outcome BalanceType = "outcome"
	Refund  BalanceType = "refund"
)

type Game string

const (
	Crash Game = "crash"
)
