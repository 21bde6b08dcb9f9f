package model

// MessageKey names a fixed user-facing message.
type MessageKey string

const (
	MsgClaimSaved    MessageKey = "claim_saved"
	MsgVoteQueued    MessageKey = "vote_queued"
	MsgVoteRecorded  MessageKey = "vote_recorded"
	MsgGenericError  MessageKey = "generic_error"
	MsgAuthRequired  MessageKey = "auth_required"
	MsgWriteRejected MessageKey = "write_rejected"
	MsgTimeout       MessageKey = "timeout"
	MsgLedgerFailure MessageKey = "ledger_failure"
)

const issuesURL = "https://github.com/WikiMovimentoBrasil/wikimotivos/issues"

var messages = map[MessageKey]map[string]string{
	MsgClaimSaved: {
		"pt": "Declaração inserida com sucesso!",
		"en": "Statement successfully inserted!",
	},
	MsgVoteQueued: {
		"pt": "Sua declaração foi inserida com sucesso no nosso banco de dados para análise!",
		"en": "Your statement was successfully saved in our database for analysis!",
	},
	MsgVoteRecorded: {
		"pt": "Sua declaração foi inserida com sucesso no nosso banco de dados!",
		"en": "Your statement was successfully saved in our database!",
	},
	MsgGenericError: {
		"pt": "Ocorreu algum erro! Verifique se selecionou uma opção. Caso o erro persista, por favor, reporte em " + issuesURL,
		"en": "Something went wrong! Check that you selected an option. If the error persists, please report it at " + issuesURL,
	},
	MsgAuthRequired: {
		"pt": "Você precisa entrar com sua conta Wikimedia para fazer esta edição.",
		"en": "You need to log in with your Wikimedia account to make this edit.",
	},
	MsgWriteRejected: {
		"pt": "O Wikidata recusou a edição. Tente novamente mais tarde.",
		"en": "Wikidata rejected the edit. Please try again later.",
	},
	MsgTimeout: {
		"pt": "O Wikidata não respondeu a tempo. Tente novamente.",
		"en": "Wikidata did not respond in time. Please try again.",
	},
	MsgLedgerFailure: {
		"pt": "Não foi possível registrar seu voto. Tente novamente.",
		"en": "Your vote could not be recorded. Please try again.",
	},
}

// Message returns the text for key in locale. Anything other than
// English gets the Portuguese text.
func Message(key MessageKey, locale string) string {
	texts, ok := messages[key]
	if !ok {
		texts = messages[MsgGenericError]
	}
	if locale == "en" {
		return texts["en"]
	}
	return texts["pt"]
}
