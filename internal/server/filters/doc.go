// Package filters validates debtor search filters before any query runs.
//
// A caller turns raw request values into a SearchFilterSet with Parse, then
// calls Validate with the rule profile of the query path. Validate is the only
// way to obtain a Validated value, and the vault only accepts Validated, so an
// unchecked filter set cannot reach storage.
//
// Filters come in two tiers:
//
//	primary:   dataInicio+dataFim (as a pair), contrato, placa
//	secondary: credor, uf, modelo, etapa
//
// cpfCnpj belongs to neither tier. Every rule is checked independently and
// all violations are returned together, in rule order, in a *ValidationError.
// Messages are user-facing (pt-BR) and meant to be shown verbatim.
package filters
