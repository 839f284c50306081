package filters

import (
	"errors"
	"strings"
)

// Violation messages, surfaced to the caller verbatim.
const (
	MsgDateStartRequired       = "dataInicio obrigatória quando dataFim é informada"
	MsgDateEndRequired         = "dataFim obrigatória quando dataInicio é informada"
	MsgDateEndBeforeStart      = "dataFim anterior a dataInicio"
	MsgInvalidDate             = "inválida: use AAAA-MM-DD ou DD/MM/AAAA"
	MsgInvalidDocument         = "CPF/CNPJ inválido: informe 11 (CPF) ou 14 (CNPJ) dígitos"
	MsgBlankCreditor           = "credor não pode ser vazio"
	MsgBlankState              = "UF não pode ser vazia"
	MsgInvalidState            = "UF inválida"
	MsgSecondaryWithoutPrimary = "combinação inválida: credor, UF, modelo ou etapa exigem período, contrato ou placa"
	MsgPrimaryAlone            = "contrato e placa não podem ser usados sozinhos"
	MsgInvalidDirectSearch     = "busca direta inválida: período, contrato ou placa exigem também credor, UF, modelo ou etapa"
	MsgPeriodRequired          = "período obrigatório: informe dataInicio e dataFim"
	MsgPeriodTooLong           = "período máximo excedido"
	MsgInvalidCombination      = "combinação de filtros inválida"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("invalid search filters")

// ValidationError carries every rule violation found, in rule order.
type ValidationError struct {
	messages []string
}

func newValidationError(msgs []string) *ValidationError {
	return &ValidationError{messages: append([]string(nil), msgs...)}
}

// Messages returns a copy of the violation list.
func (e *ValidationError) Messages() []string {
	return append([]string(nil), e.messages...)
}

func (e *ValidationError) Error() string {
	return "invalid search filters: " + strings.Join(e.messages, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
