// Package pkg, projede paylaşılan utility'leri barındırır.
// Bu dosya domain-level error tanımlarını içerir.
//
// errors.New() ile sabit error değişkenleri tanımlanır; karşılaştırma
// string yerine errors.Is(err, pkg.ErrNotFound) ile yapılır — wrap edilmiş
// error'lar da doğru match eder.
package pkg

import "errors"

// Domain-level error'lar.
// Service katmanı bunları döner, handler katmanı HTTP status code'larına
// map'ler. Listede olmayan her hata opak bir 500'e düşer — iç detay
// caller'a sızmaz.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrInternal      = errors.New("internal error")
)
