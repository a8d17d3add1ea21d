package httpapi

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

const notBlankTag = "notblank"

var (
	translator ut.Translator
	setupOnce  sync.Once
)

// setupValidator teaches gin's validator JSON field names, English messages
// and the notblank tag.
func setupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_en := en.New()
		uni := ut.New(_en, _en)
		translator, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, translator)

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
			if s, ok := fl.Field().Interface().(string); ok {
				return strings.TrimSpace(s) != ""
			}
			return false
		})
		_ = v.RegisterTranslation(notBlankTag, translator,
			func(ut.Translator) error { return nil },
			func(ut.Translator, validator.FieldError) string { return "this field cannot be blank" })
	})
}

// bindJSON decodes and validates the request body, writing a 400 response
// and returning false on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		rejectBinding(c, err, "invalid request body")
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		rejectBinding(c, err, "invalid query parameters")
		return false
	}
	return true
}

func rejectBinding(c *gin.Context, err error, fallback string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fallback})
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(translator)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
}
