// Package i18n 为面向用户的错误信息提供多语言文案
package i18n

import (
	"golang.org/x/text/language"
)

// 错误码，前端依赖这些稳定的 key
const (
	CodeInvalidRequest     = "invalid_request"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserInactive       = "user_inactive"
	CodeEmailTaken         = "email_taken"
	CodeWeakPassword       = "weak_password"
	CodeInvalidStatus      = "invalid_status"
	CodeInvalidParent      = "invalid_parent"
	CodeInvalidDependency  = "invalid_dependency"
	CodeDependencyCycle    = "dependency_cycle"
	CodeInvalidConfig      = "invalid_config"
	CodeInvalidCSV         = "invalid_csv"
	CodeAIUnavailable      = "ai_unavailable"
	CodeInternal           = "internal_error"
)

var supported = []language.Tag{
	language.English, // 第一个为默认语言
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[string]string{
	language.English: {
		CodeInvalidRequest:     "The request is invalid.",
		CodeUnauthorized:       "Please sign in to continue.",
		CodeForbidden:          "You do not have permission to do this.",
		CodeNotFound:           "The requested item was not found.",
		CodeInvalidCredentials: "Invalid email or password.",
		CodeUserInactive:       "This account is inactive.",
		CodeEmailTaken:         "This email is already registered.",
		CodeWeakPassword:       "The password must have at least 8 characters.",
		CodeInvalidStatus:      "The status is not configured for this project.",
		CodeInvalidParent:      "The parent task is invalid.",
		CodeInvalidDependency:  "One of the dependencies is invalid.",
		CodeDependencyCycle:    "This change would create a circular dependency.",
		CodeInvalidConfig:      "The project configuration is invalid.",
		CodeInvalidCSV:         "The CSV file could not be read.",
		CodeAIUnavailable:      "The AI assistant is unavailable right now. Please try again later.",
		CodeInternal:           "Something went wrong. Please try again.",
	},
	language.BrazilianPortuguese: {
		CodeInvalidRequest:     "A requisição é inválida.",
		CodeUnauthorized:       "Faça login para continuar.",
		CodeForbidden:          "Você não tem permissão para fazer isso.",
		CodeNotFound:           "O item solicitado não foi encontrado.",
		CodeInvalidCredentials: "E-mail ou senha inválidos.",
		CodeUserInactive:       "Esta conta está inativa.",
		CodeEmailTaken:         "Este e-mail já está cadastrado.",
		CodeWeakPassword:       "A senha deve ter pelo menos 8 caracteres.",
		CodeInvalidStatus:      "O status não está configurado para este projeto.",
		CodeInvalidParent:      "A tarefa pai é inválida.",
		CodeInvalidDependency:  "Uma das dependências é inválida.",
		CodeDependencyCycle:    "Esta alteração criaria uma dependência circular.",
		CodeInvalidConfig:      "A configuração do projeto é inválida.",
		CodeInvalidCSV:         "Não foi possível ler o arquivo CSV.",
		CodeAIUnavailable:      "O assistente de IA está indisponível no momento. Tente novamente mais tarde.",
		CodeInternal:           "Algo deu errado. Tente novamente.",
	},
}

// Match 根据 Accept-Language 选出支持的语言
func Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Message 返回错误码对应的文案，未知 code 回退到通用错误
func Message(tag language.Tag, code string) string {
	msgs, ok := catalog[tag]
	if !ok {
		msgs = catalog[supported[0]]
	}
	if m, ok := msgs[code]; ok {
		return m
	}
	return msgs[CodeInternal]
}

// LanguageName 给提示词用的语言名称
func LanguageName(tag language.Tag) string {
	if tag == language.BrazilianPortuguese {
		return "Brazilian Portuguese"
	}
	return "English"
}
