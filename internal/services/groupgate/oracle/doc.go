// Package oracle holds live group membership adapters used by the gate.
//
//   - onebot asks a OneBot v11 bot over HTTP.
//   - redisset reads a roster set the bot mirrors into Redis.
package oracle
