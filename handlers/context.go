package handlers

// contextKey, context'te değer taşımak için kullanılan key tipi.
//
// context.Value() any tip kabul eder — string key kullanmak paketler arası
// çakışmaya neden olabilir. Özel bir tip namespace collision'ı önler.
type contextKey string

// UserContextKey, auth middleware'ının context'e eklediği *models.User.
const UserContextKey contextKey = "user"
