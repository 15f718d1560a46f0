package app

import "serotonyl.ru/gatebot/internal/db/postgres"

// SQL-миграции встроены в код для упрощения деплоя.
// Применённые версии не меняем, только добавляем новые.
var migrations = []postgres.Migration{
	{Version: 1, SQL: migration001Users},
	{Version: 2, SQL: migration002Settings},
	{Version: 3, SQL: migration003ForceJoin},
	{Version: 4, SQL: migration004Files},
	{Version: 5, SQL: migration005Admin},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY,
    username VARCHAR(255),
    first_name VARCHAR(255) NOT NULL DEFAULT '',
    last_name VARCHAR(255),
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    last_seen_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);

CREATE TABLE IF NOT EXISTS banned_users (
    user_id BIGINT PRIMARY KEY,
    banned_by BIGINT NOT NULL,
    banned_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`

var migration002Settings = `
CREATE TABLE IF NOT EXISTS settings (
    key VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`

var migration003ForceJoin = `
CREATE TABLE IF NOT EXISTS force_join_targets (
    id BIGINT PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    invite_link TEXT NOT NULL,
    button_text VARCHAR(255) NOT NULL DEFAULT '',
    chat_type VARCHAR(16) NOT NULL DEFAULT 'channel',
    condition_limit INTEGER,
    current_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS force_join_extra_links (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(255) NOT NULL DEFAULT '',
    invite_link TEXT NOT NULL,
    button_text VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

-- журнал засчитанных вступлений: одна запись на пару пользователь/канал
CREATE TABLE IF NOT EXISTS user_target_joins (
    user_id BIGINT NOT NULL,
    target_id BIGINT NOT NULL REFERENCES force_join_targets(id) ON DELETE CASCADE,
    joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, target_id)
);
CREATE INDEX IF NOT EXISTS idx_user_target_joins_target ON user_target_joins(target_id);
`

var migration004Files = `
CREATE TABLE IF NOT EXISTS files (
    id VARCHAR(16) PRIMARY KEY,
    file_id TEXT NOT NULL,
    kind VARCHAR(16) NOT NULL,
    caption TEXT,
    usage_count BIGINT NOT NULL DEFAULT 0,
    created_by BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_files_usage ON files(usage_count DESC);
`

var migration005Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user ON admin_sessions(user_id, is_active);

CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    success BOOLEAN NOT NULL,
    attempt_time TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts ON admin_login_attempts(user_id, attempt_time);
`
