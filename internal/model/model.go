// Package model defines the core domain types shared across the net-worth engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category tags an asset record with the valuation rule that applies to it.
type Category string

const (
	CategoryCash        Category = "CASH"
	CategoryGold        Category = "GOLD"
	CategoryStock       Category = "STOCK"
	CategoryMutualFund  Category = "MUTUAL_FUND"
	CategoryBond        Category = "BOND"
	CategoryProperty    Category = "PROPERTY"
	CategoryDepreciable Category = "DEPRECIATING"
)

// AssetCategories lists every known asset category in display order.
var AssetCategories = []Category{
	CategoryCash,
	CategoryGold,
	CategoryStock,
	CategoryMutualFund,
	CategoryBond,
	CategoryProperty,
	CategoryDepreciable,
}

// CashKind distinguishes bank accounts from wallets.
type CashKind string

const (
	CashBank   CashKind = "BANK"
	CashWallet CashKind = "WALLET"
)

// LiabilityKind tags a liability record.
type LiabilityKind string

const (
	LiabilityLoan       LiabilityKind = "LOAN"
	LiabilityCreditCard LiabilityKind = "CREDIT_CARD"
)

// LiabilityKinds lists every known liability kind in display order.
var LiabilityKinds = []LiabilityKind{LiabilityLoan, LiabilityCreditCard}

// DepreciationMethod selects the formula used to derive an asset's current value.
type DepreciationMethod string

const (
	MethodStraightLine DepreciationMethod = "STRAIGHT_LINE"
	MethodPercentage   DepreciationMethod = "PERCENTAGE"
	MethodNone         DepreciationMethod = "NONE"
)

// ValuationKind is the tag of the Valuation variant.
type ValuationKind string

const (
	// ValuationDerived values a holding as Quantity * UnitPrice.
	ValuationDerived ValuationKind = "DERIVED"
	// ValuationSupplied trusts an externally tracked CurrentValue.
	ValuationSupplied ValuationKind = "SUPPLIED"
)

// Money is an amount in a given currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ExchangeRate is one base→target quote. Rate is the number of Target units per Base unit.
type ExchangeRate struct {
	Base      string          `json:"base" db:"base"`
	Target    string          `json:"target" db:"target"`
	Rate      decimal.Decimal `json:"rate" db:"rate"`
	FetchedAt time.Time       `json:"fetched_at" db:"fetched_at"`
	Source    string          `json:"source" db:"source"`
}

// User owns every record below.
type User struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Email             string    `json:"email" db:"email"`
	ReportingCurrency string    `json:"reporting_currency" db:"reporting_currency"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// CashHolding is a bank or wallet balance. Balance may be negative (overdraft).
type CashHolding struct {
	ID       string          `json:"id" db:"id"`
	UserID   string          `json:"user_id" db:"user_id"`
	Kind     CashKind        `json:"kind" db:"kind"`
	Name     string          `json:"name" db:"name"`
	Balance  decimal.Decimal `json:"balance" db:"balance"`
	Currency string          `json:"currency" db:"currency"`
}

// Valuation is either DERIVED (quantity × unit price) or SUPPLIED (current value).
// Only the fields of the active kind are meaningful.
type Valuation struct {
	Kind         ValuationKind   `json:"kind"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CurrentValue decimal.Decimal `json:"current_value"`
}

// Derived builds a quantity-priced valuation.
func Derived(quantity, unitPrice decimal.Decimal) Valuation {
	return Valuation{Kind: ValuationDerived, Quantity: quantity, UnitPrice: unitPrice}
}

// Supplied builds an externally priced valuation.
func Supplied(currentValue decimal.Decimal) Valuation {
	return Valuation{Kind: ValuationSupplied, CurrentValue: currentValue}
}

// HoldingAsset is a gold, stock, mutual fund, bond or property position.
type HoldingAsset struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Category  Category  `json:"category" db:"category"`
	Name      string    `json:"name" db:"name"`
	Valuation Valuation `json:"valuation"`
	Currency  string    `json:"currency" db:"currency"`
}

// DepreciableAsset is a purchase whose value is derived from its age.
// Rate is a percentage per year (PERCENTAGE); UsefulLifeYears drives STRAIGHT_LINE.
type DepreciableAsset struct {
	ID                  string             `json:"id" db:"id"`
	UserID              string             `json:"user_id" db:"user_id"`
	Name                string             `json:"name" db:"name"`
	PurchasePrice       decimal.Decimal    `json:"purchase_price" db:"purchase_price"`
	PurchaseDate        time.Time          `json:"purchase_date" db:"purchase_date"`
	Method              DepreciationMethod `json:"method" db:"method"`
	Rate                *decimal.Decimal   `json:"rate,omitempty" db:"rate"`
	UsefulLifeYears     *decimal.Decimal   `json:"useful_life_years,omitempty" db:"useful_life_years"`
	SalvageValue        decimal.Decimal    `json:"salvage_value" db:"salvage_value"`
	DepreciationEnabled bool               `json:"depreciation_enabled" db:"depreciation_enabled"`
	PinnedValue         *decimal.Decimal   `json:"pinned_value,omitempty" db:"pinned_value"`
	Currency            string             `json:"currency" db:"currency"`
}

// Liability is a loan or credit card. OutstandingBalance is the used amount.
type Liability struct {
	ID                 string           `json:"id" db:"id"`
	UserID             string           `json:"user_id" db:"user_id"`
	Kind               LiabilityKind    `json:"kind" db:"kind"`
	Name               string           `json:"name" db:"name"`
	OutstandingBalance decimal.Decimal  `json:"outstanding_balance" db:"outstanding_balance"`
	Limit              *decimal.Decimal `json:"limit,omitempty" db:"credit_limit"`
	EMIAmount          *decimal.Decimal `json:"emi_amount,omitempty" db:"emi_amount"`
	Currency           string           `json:"currency" db:"currency"`
}

// Records is one user's raw snapshot as supplied by persistence.
type Records struct {
	Cash        []CashHolding      `json:"cash"`
	Holdings    []HoldingAsset     `json:"holdings"`
	Depreciable []DepreciableAsset `json:"depreciable"`
	Liabilities []Liability        `json:"liabilities"`
}

// NetWorthSnapshot is derived from category totals and never mutated on its own.
type NetWorthSnapshot struct {
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	NetWorth         decimal.Decimal `json:"net_worth"`
	Currency         string          `json:"currency"`
	ComputedAt       time.Time       `json:"computed_at"`
	Approximate      bool            `json:"approximate"` // some conversion fell back to the unconverted amount
}

// Goal is a user's target net worth.
type Goal struct {
	UserID       string          `json:"user_id" db:"user_id"`
	GoalNetWorth decimal.Decimal `json:"goal_net_worth" db:"goal_net_worth"`
	TargetDate   time.Time       `json:"target_date" db:"target_date"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	Currency     string          `json:"currency" db:"currency"`
}

// RecordKind is the kind of a parsed free-text record.
type RecordKind string

const (
	RecordExpense RecordKind = "EXPENSE"
	RecordIncome  RecordKind = "INCOME"
)

// ParsedRecord is the output contract of every text parser.
type ParsedRecord struct {
	Kind     RecordKind      `json:"kind"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Category string          `json:"category"`
	Merchant string          `json:"merchant,omitempty"`
	Date     time.Time       `json:"date"`
	Source   string          `json:"source"` // "llm" or "regex"
	Raw      string          `json:"raw"`
}
