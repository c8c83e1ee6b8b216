package service

import (
	"errors"
	"fmt"
	"html"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// normalize 去掉首尾空白后校验必填和长度，内容原样保存。
// 开启 sanitize 时含标记的输入直接拒绝，不做改写。
func (s *CommentService) normalize(nickname, text string) (string, string, error) {
	nickname = strings.TrimSpace(nickname)
	text = strings.TrimSpace(text)

	err := validation.Errors{
		"nickname": validation.Validate(nickname,
			validation.Required.Error("nickname is required"),
			validation.RuneLength(0, s.cfg.Comment.MaxNicknameLength).Error("nickname is too long"),
			validation.By(s.plainText("nickname")),
		),
		"text": validation.Validate(text,
			validation.Required.Error("text is required"),
			validation.RuneLength(0, s.cfg.Comment.MaxTextLength).Error("text is too long"),
			validation.By(s.plainText("text")),
		),
	}.Filter()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidComment, err)
	}
	return nickname, text, nil
}

// plainText 策略会改动的输入视为含标记
func (s *CommentService) plainText(field string) validation.RuleFunc {
	return func(value interface{}) error {
		if s.sanitizer == nil {
			return nil
		}
		v, _ := value.(string)
		if html.UnescapeString(s.sanitizer.Sanitize(v)) != v {
			return errors.New(field + " must not contain markup")
		}
		return nil
	}
}

func validateID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidComment)
	}
	return nil
}
