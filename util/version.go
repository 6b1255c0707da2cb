package util

const CollectorVersion = "1.0.0"
const CollectorNameAndVersion = "pgtelemetry-collector " + CollectorVersion
