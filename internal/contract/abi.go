package contract

// BattleABI is the subset of the MemedBattle contract the arena uses.
const BattleABI = `[
	{
		"inputs": [{"name": "activeOnly", "type": "bool"}],
		"name": "getBattles",
		"outputs": [
			{"name": "battleIds", "type": "uint256[]"},
			{"name": "token1Addresses", "type": "address[]"},
			{"name": "token2Addresses", "type": "address[]"},
			{"name": "token1Votes", "type": "uint256[]"},
			{"name": "token2Votes", "type": "uint256[]"},
			{"name": "startTimes", "type": "uint256[]"},
			{"name": "endTimes", "type": "uint256[]"},
			{"name": "settled", "type": "bool[]"},
			{"name": "winners", "type": "address[]"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "limit", "type": "uint256"}],
		"name": "getLeaderboard",
		"outputs": [
			{"name": "addresses", "type": "address[]"},
			{"name": "wins", "type": "uint256[]"},
			{"name": "battles", "type": "uint256[]"},
			{"name": "votes", "type": "uint256[]"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "token", "type": "address"}],
		"name": "getTokenBasicStats",
		"outputs": [
			{"name": "wins", "type": "uint256"},
			{"name": "battles", "type": "uint256"},
			{"name": "votes", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "token1", "type": "address"},
			{"name": "token2", "type": "address"}
		],
		"name": "createBattle",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "battleId", "type": "uint256"},
			{"name": "votingFor", "type": "address"}
		],
		"name": "vote",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "battleId", "type": "uint256"}],
		"name": "settleBattle",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// FactoryABI covers the token factory listing call.
const FactoryABI = `[
	{
		"inputs": [{"name": "_token", "type": "address"}],
		"name": "getTokens",
		"outputs": [
			{
				"components": [
					{"name": "token", "type": "address"},
					{"name": "name", "type": "string"},
					{"name": "ticker", "type": "string"},
					{"name": "description", "type": "string"},
					{"name": "image", "type": "string"},
					{"name": "owner", "type": "address"},
					{"name": "stage", "type": "uint8"},
					{"name": "collateral", "type": "uint256"},
					{"name": "supply", "type": "uint256"},
					{"name": "createdAt", "type": "uint256"}
				],
				"name": "",
				"type": "tuple[]"
			}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ERC20ABI is only used for the voting-power balance check.
const ERC20ABI = `[
	{
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`
