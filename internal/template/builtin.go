package template

var builtinTemplates = []Template{
	{
		Id:            "postgres-db",
		Name:          "PostgreSQL",
		Description:   "Relational database",
		Category:      "database",
		Image:         "postgres",
		Tag:           "16-alpine",
		DefaultPort:   5433,
		ContainerPort: 5432,
		Volumes: []VolumeTemplate{
			{HostPathPlaceholder: "data", ContainerPath: "/var/lib/postgresql/data"},
		},
		Env: []EnvDefault{
			{Key: "POSTGRES_USER", Value: "postgres"},
			{Key: "POSTGRES_DB", Value: "app"},
			{Key: "PGDATA", Value: "/var/lib/postgresql/data/pgdata"},
		},
		HasManagerOption:  true,
		ManagerTemplateId: "pgadmin",
		DbKind:            "postgres",
		VolumeOwner:       "70:70",
		GeneratedSecrets:  []string{"POSTGRES_PASSWORD"},
		Credentials:       CredentialEnv{User: "POSTGRES_USER", Password: "POSTGRES_PASSWORD", Database: "POSTGRES_DB"},
	},
	{
		Id:            "mysql-db",
		Name:          "MySQL",
		Description:   "Relational database",
		Category:      "database",
		Image:         "mysql",
		Tag:           "8.4",
		DefaultPort:   3307,
		ContainerPort: 3306,
		Volumes: []VolumeTemplate{
			{HostPathPlaceholder: "data", ContainerPath: "/var/lib/mysql"},
		},
		Env: []EnvDefault{
			{Key: "MYSQL_USER", Value: "app"},
			{Key: "MYSQL_DATABASE", Value: "app"},
		},
		HasManagerOption:  true,
		ManagerTemplateId: "phpmyadmin",
		DbKind:            "mysql",
		VolumeOwner:       "999:999",
		GeneratedSecrets:  []string{"MYSQL_PASSWORD", "MYSQL_ROOT_PASSWORD"},
		Credentials:       CredentialEnv{User: "MYSQL_USER", Password: "MYSQL_PASSWORD", Database: "MYSQL_DATABASE"},
	},
	{
		Id:            "mongo-db",
		Name:          "MongoDB",
		Description:   "Document database",
		Category:      "database",
		Image:         "mongo",
		Tag:           "7",
		DefaultPort:   27018,
		ContainerPort: 27017,
		Volumes: []VolumeTemplate{
			{HostPathPlaceholder: "data", ContainerPath: "/data/db"},
		},
		Env: []EnvDefault{
			{Key: "MONGO_INITDB_ROOT_USERNAME", Value: "admin"},
		},
		HasManagerOption:  true,
		ManagerTemplateId: "mongo-express",
		DbKind:            "mongo",
		GeneratedSecrets:  []string{"MONGO_INITDB_ROOT_PASSWORD"},
		Credentials:       CredentialEnv{User: "MONGO_INITDB_ROOT_USERNAME", Password: "MONGO_INITDB_ROOT_PASSWORD"},
	},
	{
		Id:            "redis-cache",
		Name:          "Redis",
		Description:   "In-memory key/value cache",
		Category:      "cache",
		Image:         "redis",
		Tag:           "7-alpine",
		DefaultPort:   6380,
		ContainerPort: 6379,
		Volumes: []VolumeTemplate{
			{HostPathPlaceholder: "data", ContainerPath: "/data"},
		},
		Command:           []string{"redis-server", "--appendonly", "yes"},
		HasManagerOption:  true,
		ManagerTemplateId: "redis-commander",
		DbKind:            "redis",
	},
	{
		Id:            "node-app",
		Name:          "Node.js application",
		Description:   "Runs an uploaded Node.js project",
		Category:      "application",
		Image:         "node",
		Tag:           "20-alpine",
		DefaultPort:   3000,
		ContainerPort: 3000,
		Volumes: []VolumeTemplate{
			{HostPathPlaceholder: "app", ContainerPath: "/app"},
		},
		Env: []EnvDefault{
			{Key: "NODE_ENV", Value: "production"},
			{Key: "PORT", Value: "3000"},
		},
		Command:          []string{"sh", "-c", "tail -f /dev/null"},
		Workdir:          "/app",
		HasProjectOption: true,
	},
	{
		Id:            "nginx-web",
		Name:          "Nginx",
		Description:   "Static web server",
		Category:      "web",
		Image:         "nginx",
		Tag:           "1.27-alpine",
		DefaultPort:   8081,
		ContainerPort: 80,
		Volumes: []VolumeTemplate{
			{HostPathPlaceholder: "html", ContainerPath: "/usr/share/nginx/html"},
		},
	},
	{
		Id:            "pgadmin",
		Name:          "pgAdmin",
		Description:   "PostgreSQL administration UI",
		Category:      "manager",
		Image:         "dpage/pgadmin4",
		Tag:           "8",
		DefaultPort:   5050,
		ContainerPort: 80,
		Volumes: []VolumeTemplate{
			{HostPathPlaceholder: "pgadmin", ContainerPath: "/var/lib/pgadmin"},
		},
		Env: []EnvDefault{
			{Key: "PGADMIN_DEFAULT_EMAIL", Value: "admin@example.com"},
			{Key: "PGADMIN_CONFIG_SERVER_MODE", Value: "False"},
		},
		HasDbConfigOption: true,
		IsManager:         true,
		DbKind:            "postgres",
		GeneratedSecrets:  []string{"PGADMIN_DEFAULT_PASSWORD"},
	},
	{
		Id:                "phpmyadmin",
		Name:              "phpMyAdmin",
		Description:       "MySQL administration UI",
		Category:          "manager",
		Image:             "phpmyadmin",
		Tag:               "5",
		DefaultPort:       8082,
		ContainerPort:     80,
		HasDbConfigOption: true,
		IsManager:         true,
		DbKind:            "mysql",
		ConnectionEnv: []EnvDefault{
			{Key: "PMA_HOST", Value: "{host}"},
			{Key: "PMA_PORT", Value: "{port}"},
		},
	},
	{
		Id:                "mongo-express",
		Name:              "mongo-express",
		Description:       "MongoDB administration UI",
		Category:          "manager",
		Image:             "mongo-express",
		Tag:               "1",
		DefaultPort:       8083,
		ContainerPort:     8081,
		HasDbConfigOption: true,
		IsManager:         true,
		DbKind:            "mongo",
		ConnectionEnv: []EnvDefault{
			{Key: "ME_CONFIG_MONGODB_URL", Value: "{url}"},
		},
	},
	{
		Id:                "redis-commander",
		Name:              "Redis Commander",
		Description:       "Redis administration UI",
		Category:          "manager",
		Image:             "rediscommander/redis-commander",
		Tag:               "latest",
		DefaultPort:       8084,
		ContainerPort:     8081,
		HasDbConfigOption: true,
		IsManager:         true,
		DbKind:            "redis",
		ConnectionEnv: []EnvDefault{
			{Key: "REDIS_HOSTS", Value: "local:{host}:{port}"},
		},
	},
}
