// Package groupgate gates game logins on membership of one messaging-platform
// group.
//
// It keeps the last known membership state of every account it has seen so a
// login can still be decided when the live membership check is unavailable.
//
// Subpackages:
//   - app: server wiring and lifecycle
//   - api/http: JSON API used by the game server and the bot
//   - gate: the login decision procedure and membership operations
//   - storage: persistence contracts and the SQLite implementation
//   - oracle/onebot, oracle/redisset: live membership checks
//   - events/kafka: member joined/left event consumer
package groupgate
