package i18n

// KoMessages Korean message catalog
var KoMessages = map[string]string{
	"start.connected": "NARE 연결 완료! 이 채팅으로 Linux 시스템을 관리합니다.",
	"help.body": "이 컴퓨터에 대해 자연어로 무엇이든 물어보세요.\n\n" +
		"/run <명령> - 셸 명령을 바로 실행\n" +
		"/status - AI 제공자, 언어, 권한 보기\n" +
		"/lang - 응답 언어 선택\n" +
		"/help - 이 도움말 보기",
	"status.body": "AI 제공자: %s\n언어: %s\n권한:\n%s",

	"lang.prompt": "언어를 선택하세요",
	"lang.set":    "언어가 %s(으)로 설정되었습니다.",

	"run.usage":   "사용법: /run <명령>",
	"run.blocked": "🚫 차단됨: `%s`\n%s",
	"run.denied":  "⛔ `%s` 실행에는 %s 권한이 필요합니다 (%s). 다음 명령으로 허용하세요: nare permissions set %s=true",

	"confirm.prompt":           "⚠️ `%s` 을(를) 실행할까요? (%s)\n이 요청은 %d초 후 만료됩니다.",
	"confirm.yes":              "✅ 실행",
	"confirm.no":               "✖ 취소",
	"confirm.cancelled":        "취소됨: `%s`",
	"confirm.none":             "확인 대기 중인 명령이 없습니다.",
	"confirm.approved_blocked": "🚫 `%s` 은(는) 더 이상 허용되지 않습니다: %s",

	"provider.error":     "⚠️ AI 제공자 오류: %s",
	"provider.timeout":   "⚠️ AI 제공자가 제시간에 응답하지 않았습니다. 다시 시도해주세요.",
	"provider.not_found": "⚠️ claude CLI를 찾을 수 없습니다. 설치하거나 DeepSeek API 키를 설정하세요.",

	"reply.empty": "(어시스턴트가 빈 응답을 보냈습니다)",

	"access.denied": "이 채팅은 이 NARE 인스턴스를 사용할 수 없습니다.",
}
