package evm

// todoABI is the interface of the deployed ToDo contract.
const todoABI = `[
  {
    "type": "function",
    "name": "addTask",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "_description", "type": "string"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "completeTask",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "_id", "type": "uint256"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getTasks",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "id", "type": "uint256"},
          {"name": "description", "type": "string"},
          {"name": "completed", "type": "bool"}
        ]
      }
    ]
  }
]`
